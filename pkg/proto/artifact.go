// Package proto holds the wire types shared between the agent runtime and
// its gateway/transport layers.
package proto

// Artifact is a tool-produced file or blob handed back to a client: either
// inlined in Data for small payloads or referenced by Reference once stored
// out of band.
type Artifact struct {
	Id         string
	Type       string
	MimeType   string
	Filename   string
	Size       int64
	Reference  string
	TtlSeconds int32
	Data       []byte
}
