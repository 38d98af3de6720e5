package mentions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"none", "hello there", nil},
		{"single", "@bob hi", []string{"bob"}},
		{"order kept", "@zed and @amy", []string{"zed", "amy"}},
		{"duplicates removed", "@bob @bob @bob", []string{"bob"}},
		{"underscore and digits", "ping @user_42!", []string{"user_42"}},
		{"stops at punctuation", "@d, thanks", []string{"d"}},
		{"bare at sign", "email me @ home", nil},
		{"embedded", "mail@example.com", []string{"example"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.text))
		})
	}
}

func TestFold(t *testing.T) {
	assert.Equal(t, Fold("Bob"), Fold("bOB"))
	assert.NotEqual(t, Fold("bob"), Fold("bobby"))
}

func TestIntroduced(t *testing.T) {
	assert.Equal(t, []string{"carol"}, Introduced("thanks @bob", "thanks @Bob and @carol"))
	assert.Nil(t, Introduced("@bob", "@bob again"))
	assert.Equal(t, []string{"bob"}, Introduced("", "@bob"))
}
