package mongodb

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func compile(t *testing.T, pattern, options string) *regexp.Regexp {
	t.Helper()
	prefix := ""
	if options == "i" {
		prefix = "(?i)"
	}
	return regexp.MustCompile(prefix + pattern)
}

func TestExactFold(t *testing.T) {
	r := ExactFold("NAM-A01.1")
	re := compile(t, r.Pattern, r.Options)

	assert.True(t, re.MatchString("NAM-A01.1"))
	assert.True(t, re.MatchString("nam-a01.1"))
	assert.False(t, re.MatchString("NAM-A01X1"))
	assert.False(t, re.MatchString("NAM-A01.10"))
	assert.False(t, re.MatchString("XNAM-A01.1"))
}

func TestExactFold_Metacharacters(t *testing.T) {
	r := ExactFold("A+(B)*")
	re := compile(t, r.Pattern, r.Options)

	assert.True(t, re.MatchString("a+(b)*"))
	assert.False(t, re.MatchString("AAB"))
}

func TestContains(t *testing.T) {
	r := Contains("jv.ra")
	re := compile(t, r.Pattern, r.Options)

	assert.True(t, re.MatchString("Vataja JV.RA"))
	assert.False(t, re.MatchString("Vataja Jvara"))
}
