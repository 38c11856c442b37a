package proto

import "github.com/invopop/jsonschema"

// Schema documents every wire message for tooling outside the Go module.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		DoNotReference: true,
		ExpandedStruct: true,
	}
	root := &jsonschema.Schema{
		Version:     jsonschema.Version,
		Title:       "Tunnel Tank Tournament wire protocol",
		Description: "Session messages, relay envelopes and rendezvous control frames",
		Definitions: jsonschema.Definitions{},
	}
	for _, def := range []struct {
		name  string
		value any
	}{
		{name: "Message", value: &Message{}},
		{name: "Envelope", value: &Envelope{}},
		{name: "ControlMessage", value: &ControlMessage{}},
	} {
		schema := reflector.Reflect(def.value)
		schema.Version = ""
		root.Definitions[def.name] = schema
		root.OneOf = append(root.OneOf, &jsonschema.Schema{Ref: "#/$defs/" + def.name})
	}
	return root
}
