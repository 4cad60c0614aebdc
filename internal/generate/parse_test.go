package generate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseItemsFencedAndConcatenated(t *testing.T) {
	text := "```json\n{\"tweets\":[{\"name\":\"a\",\"nameId\":\"a1\",\"message\":\"x {y}\"}]}\n```\n" +
		"{\"tweets\":[{\"name\":\"b\",\"nameId\":\"b1\",\"message\":\"z\"}]}{\"other\":1}"
	got := ParseItems(text)
	assert.Equal(t, []Item{
		{Name: "a", NameID: "a1", Message: "x {y}"},
		{Name: "b", NameID: "b1", Message: "z"},
	}, got)
}

func TestParseItemsSkipsMalformedObjects(t *testing.T) {
	text := `noise {"tweets": [1, 2]} {"tweets":[{"name":"ok","nameId":"ok","message":"fine"}]} {"tweets":`
	got := ParseItems(text)
	assert.Equal(t, []Item{{Name: "ok", NameID: "ok", Message: "fine"}}, got)
}

func TestParseItemsEmpty(t *testing.T) {
	assert.Empty(t, ParseItems(""))
	assert.Empty(t, ParseItems("no json here"))
}
