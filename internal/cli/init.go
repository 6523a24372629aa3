package cli

import (
	"fmt"
	"net/url"
	"os"
	"strconv"

	"github.com/manifoldco/promptui"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/zine-studio/zine-landing/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file interactively",
	Long: `Ask a few questions and write zine-landing.yaml.

Anything not asked keeps its default and can be edited in the file or set
through ZINE_* environment variables afterwards.

Example:
  zine-landing init
  zine-landing init --config /etc/zine-landing.yaml`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing config file")
	rootCmd.AddCommand(initCmd)
}

// answers are the values collected by the init wizard.
type answers struct {
	Env      string
	Port     int
	Secure   bool
	TrackURL string
	TagURL   string
	DBPath   string
}

func runInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.FileName
	}
	if _, err := os.Stat(path); err == nil && !initForce {
		return eris.Errorf("%s already exists (use --force to overwrite)", path)
	}

	a, err := promptAnswers(*cfg)
	if err != nil {
		if err == promptui.ErrInterrupt {
			os.Exit(0)
		}
		return err
	}

	out := applyAnswers(*cfg, a)
	if err := config.Write(path, &out); err != nil {
		return err
	}

	printNextSteps(cmd, path, out)
	return nil
}

func promptAnswers(d config.Config) (answers, error) {
	var a answers

	envPrompt := promptui.Select{
		Label: "Environment",
		Items: []string{"production", "development"},
	}
	_, env, err := envPrompt.Run()
	if err != nil {
		return a, err
	}
	a.Env = env

	portPrompt := promptui.Prompt{
		Label:    "Port",
		Default:  strconv.Itoa(d.Server.Port),
		Validate: validatePort,
	}
	p, err := portPrompt.Run()
	if err != nil {
		return a, err
	}
	a.Port, _ = strconv.Atoi(p)

	securePrompt := promptui.Prompt{
		Label:     "Served over HTTPS (secure cookies)",
		IsConfirm: true,
	}
	if _, err := securePrompt.Run(); err == nil {
		a.Secure = true
	} else if err != promptui.ErrAbort {
		return a, err
	}

	dbPrompt := promptui.Prompt{Label: "Database path", Default: d.Store.Path}
	if a.DBPath, err = dbPrompt.Run(); err != nil {
		return a, err
	}

	trackPrompt := promptui.Prompt{Label: "Analytics collector URL (blank to skip)", Validate: validateOptionalURL}
	if a.TrackURL, err = trackPrompt.Run(); err != nil {
		return a, err
	}

	tagPrompt := promptui.Prompt{Label: "Tag manager URL (blank to skip)", Validate: validateOptionalURL}
	if a.TagURL, err = tagPrompt.Run(); err != nil {
		return a, err
	}

	return a, nil
}

// applyAnswers overlays wizard answers on a base config.
func applyAnswers(base config.Config, a answers) config.Config {
	out := base
	if a.Env != "" {
		out.App.Env = a.Env
	}
	if a.Port > 0 {
		out.Server.Port = a.Port
	}
	out.Server.SecureCookies = a.Secure
	if a.DBPath != "" {
		out.Store.Path = a.DBPath
	}
	out.Telemetry.TrackURL = a.TrackURL
	out.Telemetry.TagURL = a.TagURL
	if out.App.Development() {
		out.Log.Level = "debug"
		out.Log.Format = "console"
	}
	return out
}

func validatePort(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 65535 {
		return eris.New("port must be a number between 1 and 65535")
	}
	return nil
}

func validateOptionalURL(s string) error {
	if s == "" {
		return nil
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return eris.New("must be an http(s) URL")
	}
	return nil
}

func printNextSteps(cmd *cobra.Command, path string, c config.Config) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "\nWrote %s\n\n", path)
	fmt.Fprintln(w, "Start the server:")
	fmt.Fprintf(w, "  zine-landing serve --config %s\n\n", path)
	fmt.Fprintf(w, "The funnel will be at http://localhost:%d/\n", c.Server.Port)
	fmt.Fprintln(w, "Force an arm for a deploy with VARIANT=zen|hybrid and PRICE=15|40.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  experiments      List experiments and their traffic")
	fmt.Fprintln(w, "  results [name]   Show conversion statistics")
	fmt.Fprintln(w, "  export           Export the waitlist")
	fmt.Fprintln(w, "  assign           Show how a visitor would be assigned")
}
