// Package detect locates a running Odoo instance: its systemd unit, its
// config file and the ports the reverse proxy must route to.
package detect

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"
)

// OdooRuntime is the resolved target instance for one provisioning run.
type OdooRuntime struct {
	ServiceName     string
	ServiceFile     string
	ConfigFile      string
	HTTPPort        int
	LongpollingPort int
}

const (
	defaultHTTPPort = 8069
)

var systemdRoots = []string{
	"/etc/systemd/system",
	"/lib/systemd/system",
	"/usr/lib/systemd/system",
}

// FindServices lists installed odoo* systemd units, sorted and deduplicated.
func FindServices() []string {
	seen := map[string]bool{}
	for _, root := range systemdRoots {
		matches, err := filepath.Glob(filepath.Join(root, "odoo*.service"))
		if err != nil {
			continue
		}
		for _, path := range matches {
			seen[strings.TrimSuffix(filepath.Base(path), ".service")] = true
		}
	}
	services := make([]string, 0, len(seen))
	for name := range seen {
		services = append(services, name)
	}
	sort.Strings(services)
	return services
}

// FindServiceFile locates the unit file for a service name.
func FindServiceFile(serviceName string) (string, error) {
	for _, root := range systemdRoots {
		candidate := filepath.Join(root, serviceName+".service")
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("service file not found for %s", serviceName)
}

var configFlagPattern = regexp.MustCompile(`-c\s+(\S+)`)

// ConfigFromService extracts the Odoo config path from the unit's ExecStart
// -c flag.
func ConfigFromService(serviceFile string) (string, error) {
	content, err := os.ReadFile(serviceFile)
	if err != nil {
		return "", err
	}
	m := configFlagPattern.FindStringSubmatch(string(content))
	if m == nil {
		return "", fmt.Errorf("no -c config flag in %s", serviceFile)
	}
	cfg := strings.Trim(m[1], `"'`)
	if info, err := os.Stat(cfg); err != nil || !info.Mode().IsRegular() {
		return "", fmt.Errorf("config file from %s does not exist: %s", serviceFile, cfg)
	}
	return cfg, nil
}

// ParseOdooPorts reads http_port and longpolling_port (gevent_port on
// Odoo >= 18) from the [options] section, falling back to the defaults.
func ParseOdooPorts(configFile string) (httpPort, longpollingPort int, err error) {
	f, err := os.Open(configFile)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	values := map[string]string{}
	inOptions := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			inOptions = strings.EqualFold(line, "[options]")
			continue
		}
		if !inOptions {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		values[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	if err = scanner.Err(); err != nil {
		return 0, 0, err
	}

	intOr := func(name string, fallback int) int {
		v, ok := values[name]
		if !ok {
			return fallback
		}
		n, convErr := strconv.Atoi(v)
		if convErr != nil {
			return fallback
		}
		return n
	}

	httpPort = intOr("http_port", defaultHTTPPort)
	longpollingPort = intOr("longpolling_port", intOr("gevent_port", httpPort+1))
	return httpPort, longpollingPort, nil
}

// BuildRuntime resolves the target instance from a service name, an explicit
// config path, or both.
func BuildRuntime(serviceName, configOverride string) (*OdooRuntime, error) {
	runtime := &OdooRuntime{ServiceName: serviceName}

	if serviceName != "" {
		serviceFile, err := FindServiceFile(serviceName)
		if err != nil {
			return nil, err
		}
		runtime.ServiceFile = serviceFile
		runtime.ConfigFile = configOverride
		if runtime.ConfigFile == "" {
			if runtime.ConfigFile, err = ConfigFromService(serviceFile); err != nil {
				return nil, fmt.Errorf("could not detect Odoo config file from service: %w", err)
			}
		}
	} else {
		if configOverride == "" {
			return nil, fmt.Errorf("an Odoo config path is required when no service is given")
		}
		if info, err := os.Stat(configOverride); err != nil || !info.Mode().IsRegular() {
			return nil, fmt.Errorf("config file not found: %s", configOverride)
		}
		runtime.ConfigFile = configOverride
	}

	var err error
	runtime.HTTPPort, runtime.LongpollingPort, err = ParseOdooPorts(runtime.ConfigFile)
	if err != nil {
		return nil, err
	}
	return runtime, nil
}

// ResolveOdooDeployConfig maps an odoo-deploy profile config.yaml to the
// odoo.conf that profile generated.
func ResolveOdooDeployConfig(profileConfigPath string) (string, error) {
	path := expandUser(profileConfigPath)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("odoo-deploy profile config not found: %s", path)
	}

	var profile struct {
		ProfileName string `yaml:"profile_name"`
		BuildDir    string `yaml:"build_dir"`
	}
	if err = yaml.Unmarshal(data, &profile); err != nil {
		return "", fmt.Errorf("parse %s: %w", path, err)
	}
	if profile.ProfileName == "" {
		return "", fmt.Errorf("missing profile_name in %s", path)
	}
	buildDir := profile.BuildDir
	if buildDir == "" {
		buildDir = filepath.Join("~", "odoo_deploy_data", profile.ProfileName)
	}

	odooConf := filepath.Join(expandUser(buildDir), "docker", "etc", "odoo.conf")
	if info, err := os.Stat(odooConf); err != nil || !info.Mode().IsRegular() {
		return "", fmt.Errorf("resolved odoo.conf not found: %s (generate it first with `odoodeploy odoo-build`)", odooConf)
	}
	return odooConf, nil
}

func expandUser(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
