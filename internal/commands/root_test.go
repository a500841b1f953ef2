package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/txengine/internal/config"
	"github.com/cleared-dev/txengine/internal/model"
	"github.com/cleared-dev/txengine/internal/rejectlog"
	"github.com/cleared-dev/txengine/internal/txcsv"
)

func runTxengine(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err = cmd.Execute()
	return out.String(), errOut.String(), err
}

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transactions.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readBalances(t *testing.T, out string) []model.Balance {
	t.Helper()
	balances, err := txcsv.ReadBalances(strings.NewReader(out))
	require.NoError(t, err)
	return balances
}

func TestReplay_Basic(t *testing.T) {
	out, _, err := runTxengine(t, filepath.Join("..", "..", "testdata", "transactions.csv"))
	require.NoError(t, err)

	want := txcsv.OutputHeader + "\n" +
		"1,1.5,0,1.5,false\n" +
		"2,2,0,2,false\n"
	assert.Equal(t, want, out)
}

func TestReplay_Disputes(t *testing.T) {
	out, stderr, err := runTxengine(t, filepath.Join("..", "..", "testdata", "disputes.csv"))
	require.NoError(t, err, "rejected records are not fatal")

	balances := readBalances(t, out)
	require.Len(t, balances, 2)
	tests := []struct {
		client                 uint16
		available, held, total string
		locked                 bool
	}{
		{1, "10", "0", "10", true},
		{2, "0", "20", "20", false},
	}
	for i, tt := range tests {
		b := balances[i]
		assert.Equal(t, tt.client, b.Client)
		assert.True(t, b.Available.Equal(decimal.RequireFromString(tt.available)), "client %d available %s", b.Client, b.Available)
		assert.True(t, b.Held.Equal(decimal.RequireFromString(tt.held)), "client %d held %s", b.Client, b.Held)
		assert.True(t, b.Total.Equal(decimal.RequireFromString(tt.total)), "client %d total %s", b.Client, b.Total)
		assert.Equal(t, tt.locked, b.Locked, "client %d locked", b.Client)
	}

	// One warning per rejected record.
	assert.Equal(t, 3, strings.Count(stderr, "skipping transaction"), stderr)
	assert.Contains(t, stderr, "account is locked")
	assert.Contains(t, stderr, "insufficient funds")
}

func TestReplay_Rounding(t *testing.T) {
	input := writeInput(t, txcsv.InputHeader+"\n"+
		"deposit,1,1,1.23456\n"+
		"deposit,1,2,0.00004\n")

	out, _, err := runTxengine(t, input)
	require.NoError(t, err)
	assert.Equal(t, txcsv.OutputHeader+"\n1,1.2346,0,1.2346,false\n", out)
}

func TestReplay_MalformedIsFatal(t *testing.T) {
	out, stderr, err := runTxengine(t, filepath.Join("..", "..", "testdata", "malformed.csv"))
	require.Error(t, err)
	assert.Empty(t, out, "no balances on a fatal error")
	assert.Contains(t, err.Error(), "line 3")
	assert.Contains(t, err.Error(), "parsing client")
	assert.Contains(t, stderr, "Error:")
}

func TestReplay_AmountNotationIsFatal(t *testing.T) {
	tests := []struct {
		name string
		row  string
		want string
	}{
		{"tiny exponent", "deposit,1,2,1e-200000000", "exponent notation not supported"},
		{"large exponent", "deposit,1,2,1E9", "exponent notation not supported"},
		{"scale too large", "deposit,1,2,1.00000000000000000000000000001", "more than 28 decimal places"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := writeInput(t, txcsv.InputHeader+"\ndeposit,1,1,1\n"+tt.row+"\n")
			out, _, err := runTxengine(t, input)
			require.Error(t, err)
			assert.Empty(t, out)
			assert.Contains(t, err.Error(), "line 3")
			assert.Contains(t, err.Error(), "parsing amount")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReplay_MissingFile(t *testing.T) {
	out, _, err := runTxengine(t, filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "opening input")
	assert.Empty(t, out)
}

func TestReplay_ArgCount(t *testing.T) {
	_, _, err := runTxengine(t)
	require.Error(t, err)

	_, _, err = runTxengine(t, "a.csv", "b.csv")
	require.Error(t, err)
}

func TestReplay_EmptyInput(t *testing.T) {
	out, _, err := runTxengine(t, writeInput(t, ""))
	require.NoError(t, err)
	assert.Equal(t, txcsv.OutputHeader+"\n", out)
	assert.Empty(t, readBalances(t, out))
}

func TestReplay_RejectsFile(t *testing.T) {
	rejects := filepath.Join(t.TempDir(), "rejects.csv")
	_, _, err := runTxengine(t, "--rejects", rejects, filepath.Join("..", "..", "testdata", "disputes.csv"))
	require.NoError(t, err)

	entries, err := rejectlog.Read(rejects)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, 8, entries[0].Seq)
	assert.Equal(t, "deposit", entries[0].Type)
	assert.Equal(t, "account is locked", entries[0].Reason)

	assert.Equal(t, 9, entries[1].Seq)
	assert.Equal(t, "withdrawal", entries[1].Type)
	assert.Equal(t, "25", entries[1].Amount)

	assert.Equal(t, 11, entries[2].Seq)
	assert.Equal(t, uint32(6), entries[2].TX)
}

func TestReplay_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Output.Precision = 1
	cfg.Log.Level = "error"
	cfg.Rejects.Path = filepath.Join(dir, "rejects.csv")
	cfgPath := filepath.Join(dir, "txengine.yaml")
	require.NoError(t, config.Save(cfgPath, cfg))

	input := writeInput(t, txcsv.InputHeader+"\n"+
		"deposit,1,1,1.25\n"+
		"withdrawal,1,2,9\n")

	out, stderr, err := runTxengine(t, "--config", cfgPath, input)
	require.NoError(t, err)
	assert.Equal(t, txcsv.OutputHeader+"\n1,1.2,0,1.2,false\n", out, "banker's rounding to 1 place")
	assert.NotContains(t, stderr, "skipping transaction", "warnings are below the configured level")

	entries, err := rejectlog.Read(cfg.Rejects.Path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestReplay_LogLevelFlagOverridesConfig(t *testing.T) {
	input := writeInput(t, txcsv.InputHeader+"\n"+
		"deposit,1,1,10\n"+
		"withdrawal,1,2,7\n"+
		"dispute,1,1,\n")

	_, stderr, err := runTxengine(t, "--log-level", "info", input)
	require.NoError(t, err)
	assert.Contains(t, stderr, "dispute held less than the disputed amount")
	assert.Contains(t, stderr, "replay finished")
}

func TestReplay_InvalidConfig(t *testing.T) {
	_, _, err := runTxengine(t, "--log-level", "loud", writeInput(t, ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.level")
}

func TestVersion(t *testing.T) {
	out, _, err := runTxengine(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "dev")
}
