package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyIntent(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Intent
	}{
		{"greeting", "hi", IntentSimple},
		{"short question", "how are you today", IntentSimple},
		{"empty", "", IntentSimple},
		{"creative write", "write a poem about rain", IntentCreative},
		{"creative recall", "do you recall the harbor", IntentCreative},
		{"image request", "show me a picture of the moon", IntentCreativeImage},
		{"image stem", "an illustrated scene of dusk", IntentCreativeImage},
		{"math request", "solve for x: 2x = 8", IntentMath},
		{"math beats image", "calculate and show me a picture of a triangle", IntentMath},
		{"image beats creative", "paint a poem as a picture", IntentCreativeImage},
		{"long without keywords", "the tide came in slowly over the flats while the gulls argued about nothing at all", IntentCreative},
		{"case insensitive", "SHOW ME A PICTURE", IntentCreativeImage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyIntent(tt.text))
		})
	}
}
