package version

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// TestVersionStrings ensures Short and Full return non-empty consistent information.
func TestVersionStrings(t *testing.T) {
	t.Parallel()

	require.NotEmpty(t, Short())
	require.Contains(t, Full(), Short())
}

func TestUserAgent(t *testing.T) {
	t.Parallel()

	require.Equal(t, "sos-trigger/"+Short(), UserAgent("sos-trigger", ""))
	require.Equal(t, "sos-trigger/"+Short()+" (operator@host)", UserAgent("sos-trigger", "operator@host"))
}

func TestAttachCobraVersionCommand(t *testing.T) {
	t.Parallel()

	var (
		root = &cobra.Command{Use: "sos-laser"}
		out  bytes.Buffer
	)

	AttachCobraVersionCommand(root)
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	require.Equal(t, Full()+"\n", out.String())
}
