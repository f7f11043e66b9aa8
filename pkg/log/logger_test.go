package log

import (
	"bytes"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestSetLevelName(t *testing.T) {
	defer logger.SetLevel(logrus.InfoLevel)

	SetLevelName("debug")
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	SetLevelName("not-a-level")
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	defer logger.SetLevel(logrus.InfoLevel)

	SetLevel(2)
	buf.Reset()
	Infof("hidden %d", 1)
	Warnf("shown %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden 1")
	assert.Contains(t, out, "shown 2")
}
