package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestGenThenInspect(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.cdoc")

	_, err := run(t, "gen", path,
		"--file", "lorem1.txt",
		"--file", "lorem2.txt",
		"--ec", "TESTNUMBER,ECC,14212128029",
		"--rsa", "rsa recipient",
		"--pkcs12-dir", dir)
	require.NoError(t, err)

	out, err := run(t, "inspect", "-o", "json", path)
	require.NoError(t, err)

	var views []infoView
	require.NoError(t, json.Unmarshal([]byte(out), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "1.1", views[0].Format)
	assert.Equal(t, []string{"lorem1.txt", "lorem2.txt"}, views[0].DataFiles)
	require.Len(t, views[0].Recipients, 2)
	assert.Equal(t, "rsa recipient", views[0].Recipients[0].CommonName)
	assert.Equal(t, "ecc", views[0].Recipients[1].Transport)

	out, err = run(t, "select", path, "--pkcs12", filepath.Join(dir, "recipient0.p12"), "--pkcs12-password", "test")
	require.NoError(t, err)
	assert.Contains(t, out, "rsa recipient")
}

func TestFilesYAMLAndText(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "legacy.cdoc")
	_, err := run(t, "gen", path, "--container-version", "1.0", "--file", "test.txt", "--rsa", "legacy")
	require.NoError(t, err)

	out, err := run(t, "files", "-o", "yaml", path)
	require.NoError(t, err)
	var views []infoView
	require.NoError(t, yaml.Unmarshal([]byte(out), &views))
	require.Len(t, views, 1)
	assert.Equal(t, []string{"test.txt"}, views[0].DataFiles)

	out, err = run(t, "recipients", path)
	require.NoError(t, err)
	assert.Contains(t, out, "legacy")
	assert.Contains(t, out, "rsa")
}

func TestRejectedContainerFailsCommand(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.cdoc")
	require.NoError(t, os.WriteFile(bad, []byte(`<!DOCTYPE x [<!ENTITY e SYSTEM "file:///etc/passwd">]><x>&e;</x>`), 0o644))

	_, err := run(t, "files", bad)
	assert.ErrorContains(t, err, "1 of 1 containers rejected")
}

func TestUnreadableContainerDoesNotStopTheRest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.cdoc")
	_, err := run(t, "gen", path, "--rsa", "x")
	require.NoError(t, err)

	out, err := run(t, "files", "-o", "json", filepath.Join(dir, "missing.cdoc"), path)
	assert.ErrorContains(t, err, "1 of 2 containers rejected")

	var views []infoView
	require.NoError(t, json.Unmarshal([]byte(out), &views))
	require.Len(t, views, 1)
	assert.Equal(t, path, views[0].File)
	assert.Equal(t, []string{"lorem1.txt"}, views[0].DataFiles)
}

func TestGenKeepsCommasInFileNames(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.cdoc")
	_, err := run(t, "gen", path, "--file", "report,final.txt", "--file", "b.txt", "--rsa", "x")
	require.NoError(t, err)

	out, err := run(t, "files", "-o", "yaml", path)
	require.NoError(t, err)
	var views []infoView
	require.NoError(t, yaml.Unmarshal([]byte(out), &views))
	require.Len(t, views, 1)
	assert.Equal(t, []string{"report,final.txt", "b.txt"}, views[0].DataFiles)
}

func TestUnknownOutputFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.cdoc")
	_, err := run(t, "gen", path, "--rsa", "x")
	require.NoError(t, err)

	_, err = run(t, "files", "-o", "xml", path)
	assert.Error(t, err)
}
