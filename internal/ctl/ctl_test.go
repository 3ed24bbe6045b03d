package ctl

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/dmitrijs2005/homedock/internal/cryptox"
	"github.com/dmitrijs2005/homedock/internal/server"
	"github.com/dmitrijs2005/homedock/internal/server/config"
	"github.com/dmitrijs2005/homedock/internal/server/rbac"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.LoadDefaults()
	c.DatabaseDSN = "file:" + filepath.Join(t.TempDir(), "ctl.db") + "?_foreign_keys=on"
	return c
}

func useConfig(t *testing.T, c *config.Config) {
	t.Helper()
	orig := loadConfig
	loadConfig = func() (*config.Config, error) { return c, nil }
	t.Cleanup(func() { loadConfig = orig })
}

func usePasswords(t *testing.T, pws ...string) {
	t.Helper()
	orig := readPassword
	i := 0
	readPassword = func(int) ([]byte, error) {
		if i >= len(pws) {
			return nil, errors.New("no more input")
		}
		pw := pws[i]
		i++
		return []byte(pw), nil
	}
	t.Cleanup(func() { readPassword = orig })
}

// execute runs the root command with args. Flag values on the shared
// command tree are reset first.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	for _, c := range rootCmd.Commands() {
		resetFlags(c)
	}
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func resetFlags(c *cobra.Command) {
	c.Flags().VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
}

func TestKeygen(t *testing.T) {
	out, err := execute(t, "", "keygen")
	require.NoError(t, err)

	m := regexp.MustCompile(`HOMEDOCK_MASTER_KEY=(\S+)`).FindStringSubmatch(out)
	require.Len(t, m, 2)
	key, err := cryptox.ParseMasterKey(m[1])
	require.NoError(t, err)
	assert.Len(t, key, 32)
	assert.NotContains(t, out, "HOMEDOCK_JWT_SECRET")

	out, err = execute(t, "", "keygen", "--jwt")
	require.NoError(t, err)
	assert.Regexp(t, `HOMEDOCK_JWT_SECRET=[0-9a-f]{64}\n`, out)
}

func TestMigrate(t *testing.T) {
	useConfig(t, testConfig(t))

	out, err := execute(t, "", "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "migrations applied")
}

func TestMigrate_ConfigError(t *testing.T) {
	orig := loadConfig
	loadConfig = func() (*config.Config, error) { return nil, errors.New("bad config") }
	t.Cleanup(func() { loadConfig = orig })

	_, err := execute(t, "", "migrate")
	require.EqualError(t, err, "bad config")
}

func TestCreateAdmin_Prompt(t *testing.T) {
	c := testConfig(t)
	useConfig(t, c)
	usePasswords(t, "password123", "password123")

	out, err := execute(t, "", "create-admin", "--username", "root")
	require.NoError(t, err)
	assert.Contains(t, out, `admin "root" created`)

	db, m, err := server.OpenDatabase(context.Background(), c)
	require.NoError(t, err)
	defer db.Close()

	u, err := m.Users(db).GetByUserName(context.Background(), "root")
	require.NoError(t, err)
	assert.Contains(t, u.Roles, rbac.RoleAdmin)
	assert.True(t, cryptox.NewPasswordHasher(cryptox.DefaultPasswordParams).Verify("password123", u.PasswordHash))

	n, err := m.Roles(db).List(context.Background())
	require.NoError(t, err)
	assert.Len(t, n, len(rbac.SystemRoleNames()))
}

func TestCreateAdmin_Stdin(t *testing.T) {
	useConfig(t, testConfig(t))

	out, err := execute(t, "first-pass\n", "create-admin", "-u", "root", "--password-stdin")
	require.NoError(t, err)
	assert.Contains(t, out, "created")

	out, err = execute(t, "second-pass", "create-admin", "-u", "root", "--password-stdin")
	require.NoError(t, err)
	assert.Contains(t, out, "granted admin")
}

func TestCreateAdmin_Errors(t *testing.T) {
	useConfig(t, testConfig(t))

	t.Run("mismatch", func(t *testing.T) {
		usePasswords(t, "password123", "password124")
		_, err := execute(t, "", "create-admin", "-u", "root")
		require.ErrorIs(t, err, errPasswordMismatch)
	})

	t.Run("missing username", func(t *testing.T) {
		_, err := execute(t, "", "create-admin")
		require.Error(t, err)
	})

	t.Run("empty stdin", func(t *testing.T) {
		_, err := execute(t, "\n", "create-admin", "-u", "root", "--password-stdin")
		require.Error(t, err)
	})

	t.Run("short password", func(t *testing.T) {
		_, err := execute(t, "short\n", "create-admin", "-u", "root", "--password-stdin")
		require.Error(t, err)
	})
}

func TestReadLine(t *testing.T) {
	s, err := ReadLine(strings.NewReader("secret\r\nrest"))
	require.NoError(t, err)
	assert.Equal(t, "secret", s)

	s, err = ReadLine(strings.NewReader("tail"))
	require.NoError(t, err)
	assert.Equal(t, "tail", s)

	_, err = ReadLine(strings.NewReader(""))
	require.Error(t, err)
}
