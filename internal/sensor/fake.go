package sensor

import "errors"

// FakeReader is a test double that returns scripted temperature readings.
type FakeReader struct {
	// Samples contains scripted (ambient, storage) readings. Each call to
	// Read() consumes the next sample.
	Samples []Sample

	index int

	// Closed tracks if Close was called.
	Closed bool

	// ReadError, if set, will be returned by Read().
	ReadError error
}

// Sample is a single scripted reading.
type Sample struct {
	Ambient float64
	Storage float64
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples []Sample) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeReader) Read() (float64, float64, error) {
	if f.ReadError != nil {
		return 0, 0, f.ReadError
	}

	if len(f.Samples) == 0 {
		return 0, 0, errors.New("no samples configured")
	}

	s := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}
	return s.Ambient, s.Storage, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}
