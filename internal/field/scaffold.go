package field

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/bloombuilt/qb/internal/envfile"
	"github.com/bloombuilt/qb/internal/secure"
	"github.com/bloombuilt/qb/internal/vault"
)

// Playbooks scaffolded into every field, in run order.
var Playbooks = []string{"infra", "provision", "deploy"}

var playbookTemplates = map[string]string{
	"infra":     "# Write a playbook to set up actual cloud resources here!\n",
	"provision": "# Write a playbook to provision your nifty new servers.\n",
	"deploy":    "# Write a playbook that deploys your code to freshly provisioned boxes!\n",
}

const requirementsTemplate = "# Add your Ansible Galaxy requirements here\n"

const envTemplate = `# Copy this file to your servers and source it before running your apps.
# Fill it with environment variables like this:
#
# export NODE_ENV=%s
#
# It is encrypted whenever it is stored in your repository, so secrets are
# safe in here.
`

// commonVars is the content of vars/common.yml.
type commonVars struct {
	AppName string `yaml:"app_name"`
	Env     string `yaml:"env"`
}

// scaffold writes the field directory set. app_env is encrypted before
// requirements.yml is written, so a failed encryption leaves no
// requirements file behind.
func scaffold(ctx context.Context, f Field, enc vault.Encryptor) error {
	for _, dir := range []string{filepath.Join(f.Dir, "vars"), filepath.Join(f.Dir, "files")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	vars, err := yaml.Marshal(commonVars{AppName: f.AppName, Env: f.Name})
	if err != nil {
		return err
	}
	if err := writeNew(filepath.Join(f.Dir, "vars", "common.yml"), vars, 0o644); err != nil {
		return err
	}

	for _, name := range Playbooks {
		if err := writeNew(f.Playbook(name), []byte(playbookTemplates[name]), 0o644); err != nil {
			return err
		}
	}

	envPath := envfile.Path(f.Dir)
	if err := writeNew(envPath, []byte(fmt.Sprintf(envTemplate, f.Name)), 0o600); err != nil {
		return err
	}
	if err := enc.Protect(ctx, envPath); err != nil {
		return fmt.Errorf("failed to encrypt %s: %w", envPath, err)
	}

	return writeNew(f.Requirements(), []byte(requirementsTemplate), 0o644)
}

// discard removes a partially scaffolded field. app_env may still be
// plaintext, so it is shredded before the directory goes.
func discard(f Field) error {
	if err := secure.Shred(f.EnvFile(), secure.DefaultPasses); err != nil {
		return err
	}
	return os.RemoveAll(f.Dir)
}

func writeNew(path string, data []byte, mode os.FileMode) error {
	if err := os.WriteFile(path, data, mode); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
