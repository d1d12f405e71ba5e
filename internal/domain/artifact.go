package domain

// Artifact is the binary output of a successful generation.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

// VideoRequest describes a video synthesis job.
type VideoRequest struct {
	Prompt   string
	Width    int
	Height   int
	Seconds  int
	Variants int
	Model    string
}

// EditRequest describes an image edit. Images keep their order; Mask is
// optional and passed to the service untouched.
type EditRequest struct {
	Prompt  string
	Images  [][]byte
	Mask    []byte
	Size    string
	Quality string
}
