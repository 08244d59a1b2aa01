package encoder

// Message is posted by a running job: Progress, then one Success or Failure.
type Message interface {
	encoderMessage()
}

// Progress reports completion in percent, 0 to 100. Values never decrease.
type Progress struct {
	Percent float64
}

// Success carries the complete MP3 stream.
type Success struct {
	MP3 []byte
}

// Failure ends a job that could not produce output.
type Failure struct {
	Error string
}

func (Progress) encoderMessage() {}
func (Success) encoderMessage()  {}
func (Failure) encoderMessage()  {}
