package pipeline

// ImageSource is a garment image handed to the pipeline, either raw upload
// bytes or the URL of an already hosted image.
type ImageSource struct {
	Data     []byte
	Filename string
	URL      string
}

// ImageFromBytes wraps uploaded file bytes.
func ImageFromBytes(data []byte, filename string) ImageSource {
	return ImageSource{Data: data, Filename: filename}
}

// ImageFromURL wraps a hosted image address.
func ImageFromURL(url string) ImageSource {
	return ImageSource{URL: url}
}

// IsEmpty reports whether there is nothing to process.
func (s ImageSource) IsEmpty() bool {
	return len(s.Data) == 0 && s.URL == ""
}

// Ref is the stable reference preserved through failures. Uploads that
// have no hosted address yet are identified by filename.
func (s ImageSource) Ref() string {
	if s.URL != "" {
		return s.URL
	}
	if s.Filename != "" {
		return "upload://" + s.Filename
	}
	return ""
}
