package automation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLocator(t *testing.T) {
	assert.Equal(t, ByCSS, Locator{Query: "#a"}.Strategy())
	assert.Equal(t, ByXPath, Locator{By: "XPATH", Query: "//a"}.Strategy())
	assert.Equal(t, "css=#a", CSS("#a").String())

	assert.NoError(t, XPath("//input").Validate())
	assert.Error(t, CSS("  ").Validate())
	assert.Error(t, Locator{By: "shadow", Query: "a"}.Validate())
	assert.True(t, Locator{}.IsZero())
}

func TestSiteURL(t *testing.T) {
	e := NewEnv(map[Param]string{ParamSite: "https://panel.example/"})
	assert.Equal(t, "https://panel.example/users", SiteURL("/users")(e))
	assert.Equal(t, "https://panel.example", SiteURL("/")(e))
	assert.Equal(t, "", P(ParamAccount)(e))
}

func TestDetach(t *testing.T) {
	type key struct{}
	parent, cancel := context.WithTimeout(context.WithValue(context.Background(), key{}, "v"), time.Millisecond)
	cancel()

	d := Detach(parent)
	assert.NoError(t, d.Err())
	assert.Nil(t, d.Done())
	_, ok := d.Deadline()
	assert.False(t, ok)
	assert.Equal(t, "v", d.Value(key{}))
}
