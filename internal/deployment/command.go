package deployment

import (
	"fmt"
	"strings"
)

// BuildCommand renders the provider CLI invocation for an approved request.
// The command is assembled only from stored configuration; nothing from the
// original conversation text reaches the shell.
func BuildCommand(req *Request, cliPath string) (string, error) {
	if req == nil {
		return "", fmt.Errorf("deployment: request cannot be nil")
	}
	if cliPath == "" {
		cliPath = "az"
	}
	cfg := req.Configuration

	switch req.ResourceType {
	case "virtual_machine":
		image, err := vmImage(cfg["os_type"])
		if err != nil {
			return "", err
		}
		return join(cliPath, "vm", "create",
			"--resource-group", arg(cfg["resource_group"]),
			"--name", arg(req.ResourceName),
			"--size", arg(cfg["size"]),
			"--image", arg(image),
			"--location", arg(cfg["location"]),
		), nil
	case "sql_database":
		return join(cliPath, "sql", "db", "create",
			"--resource-group", arg(cfg["resource_group"]),
			"--server", arg(req.ResourceName+"-srv"),
			"--name", arg(req.ResourceName),
			"--service-objective", arg(cfg["tier"]),
		), nil
	case "storage_account":
		return join(cliPath, "storage", "account", "create",
			"--resource-group", arg(cfg["resource_group"]),
			"--name", arg(req.ResourceName),
			"--location", arg(cfg["location"]),
			"--sku", arg(cfg["sku"]),
		), nil
	case "app_service":
		return join(cliPath, "webapp", "create",
			"--resource-group", arg(cfg["resource_group"]),
			"--name", arg(req.ResourceName),
			"--plan", arg(cfg["plan"]),
			"--runtime", arg(cfg["runtime"]),
		), nil
	case "function_app":
		return join(cliPath, "functionapp", "create",
			"--resource-group", arg(cfg["resource_group"]),
			"--name", arg(req.ResourceName),
			"--consumption-plan-location", arg(cfg["location"]),
			"--runtime", arg(cfg["runtime"]),
		), nil
	default:
		return "", fmt.Errorf("deployment: no command template for resource type %q", req.ResourceType)
	}
}

func vmImage(osType string) (string, error) {
	switch strings.ToLower(osType) {
	case "linux", "ubuntu", "":
		return "Ubuntu2204", nil
	case "windows":
		return "Win2022Datacenter", nil
	default:
		return "", fmt.Errorf("deployment: unsupported os_type %q", osType)
	}
}

func join(parts ...string) string {
	return strings.Join(parts, " ")
}

// arg single-quotes a configuration value for the shell.
func arg(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
