package tokencodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeEmpty(t *testing.T) {
	c := New()
	assert.Nil(t, c.Encode(""))
	assert.Equal(t, 0, c.Count(""))
}

func TestEncodeDeterministic(t *testing.T) {
	c := New()
	text := "The quick brown fox jumps over the lazy dog. func main() {}"
	a := c.Encode(text)
	b := c.Encode(text)
	require.Equal(t, a, b)
}

func TestEncodeCountMatchesLength(t *testing.T) {
	c := New()
	text := "hello, world! foo_bar baz123"
	assert.Equal(t, len(c.Encode(text)), c.Count(text))
}

func TestDecodeRoundTripWords(t *testing.T) {
	c := New()
	text := "hello world foo bar"
	tokens := c.Encode(text)
	assert.Equal(t, "hello world foo bar", c.Decode(tokens))
}

func TestEncodeSplitsPunctuationIntoOwnTokens(t *testing.T) {
	c := New()
	tokens := c.Encode("foo()")
	assert.Equal(t, []string{"foo", "(", ")"}, tokens)
}

func TestEncodeIgnoresWhitespaceRuns(t *testing.T) {
	c := New()
	assert.Equal(t, c.Encode("a  b\tc\nd"), c.Encode("a b c d"))
}

func TestName(t *testing.T) {
	assert.NotEmpty(t, New().Name())
}
