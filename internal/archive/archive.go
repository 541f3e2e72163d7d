package archive

// Archive is a finished deliverable. It is created fresh for each assembly
// and owned by the caller once returned.
type Archive struct {
	Name string
	Data []byte
	Size int64
}

// New wraps finalized archive bytes under a deliverable name.
func New(name string, data []byte) *Archive {
	return &Archive{Name: name, Data: data, Size: int64(len(data))}
}
