package instance

import (
	"os"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetIDPrefersEnv(t *testing.T) {
	t.Setenv(idEnv, " cron-a ")
	require.Equal(t, "cron-a", GetID())
}

func TestGetIDFallsBackToHostAndPid(t *testing.T) {
	t.Setenv(idEnv, "")
	id := GetID()
	require.True(t, strings.HasSuffix(id, "-"+strconv.Itoa(os.Getpid())), id)
}
