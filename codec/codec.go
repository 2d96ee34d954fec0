// Package codec centralizes registry snapshot payload encoding.
//
// Snapshots are self-describing: the snapshot header stores the codec name,
// and the reader selects the codec by that name. Changing a codec's encoding
// is a breaking change for existing snapshots.
package codec

// Codec encodes/decodes snapshot payloads.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// Default is the codec used when none is configured.
var Default Codec = JSON{}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}
