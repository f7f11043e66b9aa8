package starter

import (
	"context"
	"testing"

	"fungily.io/fungily-score/internal/config"
	"github.com/stretchr/testify/assert"
)

type element struct {
	name   string
	events *[]string
	level  string
}

func (e *element) Start(context.Context) { *e.events = append(*e.events, "start "+e.name) }
func (e *element) Stop()                 { *e.events = append(*e.events, "stop "+e.name) }

type configurableElement struct {
	element
}

func (e *configurableElement) Apply(c *config.Configuration) { e.level = c.LogLevel }

func TestStartAndStopOrder(t *testing.T) {
	prev := config.Global
	config.Global = &config.Configuration{LogLevel: "warn"}
	defer func() { config.Global = prev }()

	var events []string
	a := &element{name: "a", events: &events}
	b := &configurableElement{element{name: "b", events: &events}}

	Start(context.Background(), a, b)
	Stop(a, b)

	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, events)
	assert.Equal(t, "warn", b.level)
	assert.Empty(t, a.level)
}
