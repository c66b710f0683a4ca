package audio

import "sync"

// SharedAudioBuffer keeps the most recent window of mixed samples for
// non-destructive peeking by the level meter and spectrum analyzer.
// Writes fill a back window which is swapped to the front when full, so a
// reader always sees one complete, contiguous window.
type SharedAudioBuffer struct {
	mu           sync.RWMutex
	windowSize   int
	writeWindow  []float32
	readWindow   []float32
	writePos     int
	totalWritten int64
}

// DefaultWindowSize is 1024 interleaved stereo frames.
const DefaultWindowSize = 2048

func NewSharedAudioBuffer(windowSize int) *SharedAudioBuffer {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	return &SharedAudioBuffer{
		windowSize:  windowSize,
		writeWindow: make([]float32, windowSize),
		readWindow:  make([]float32, windowSize),
	}
}

// Write appends samples to the back window.
func (b *SharedAudioBuffer) Write(samples []float32) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := 0; i < len(samples); {
		n := copy(b.writeWindow[b.writePos:], samples[i:])
		b.writePos += n
		i += n
		if b.writePos >= b.windowSize {
			b.writeWindow, b.readWindow = b.readWindow, b.writeWindow
			b.writePos = 0
		}
	}
	b.totalWritten += int64(len(samples))
}

// WindowPeek returns a copy of the last complete window.
func (b *SharedAudioBuffer) WindowPeek() []float32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	result := make([]float32, b.windowSize)
	copy(result, b.readWindow)
	return result
}

func (b *SharedAudioBuffer) WindowSize() int {
	return b.windowSize
}

func (b *SharedAudioBuffer) TotalSamplesWritten() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.totalWritten
}
