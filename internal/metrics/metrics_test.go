package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fixedVoice int

func (f fixedVoice) VoiceConnectionCount() int { return int(f) }

func TestSource(t *testing.T) {
	s := NewSource(fixedVoice(3))

	assert.Equal(t, 3, s.VoiceConnections())

	m := s.Memory()
	assert.NotZero(t, m.HeapUsed)
	assert.GreaterOrEqual(t, m.HeapTotal, m.HeapUsed)
	assert.NotZero(t, m.RSS)

	time.Sleep(5 * time.Millisecond)
	assert.Greater(t, s.Uptime(), time.Duration(0))
}

func TestSourceWithoutVoice(t *testing.T) {
	assert.Equal(t, 0, NewSource(nil).VoiceConnections())
}
