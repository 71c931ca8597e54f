package monitoring

import (
	"fmt"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLogger(t *testing.T) {
	t.Cleanup(func() { Logf = log.Printf })

	t.Run("captures output", func(t *testing.T) {
		var got []string
		SetLogger(func(format string, v ...interface{}) {
			got = append(got, fmt.Sprintf(format, v...))
		})

		Logf("[container] accepted %s", "door")

		assert.Equal(t, []string{"[container] accepted door"}, got)
	})

	t.Run("nil mutes", func(t *testing.T) {
		SetLogger(nil)
		assert.NotPanics(t, func() { Logf("dropped %d", 1) })
	})
}
