package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "full":
		return fullTemplate, nil
	case "minimal":
		return minimalTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const fullTemplate = `[log]
level = "info"

[codec]
delimiter = "soh"
validate_enums = true
validate_required = true
max_body_length = 1048576

[dictionaries]
builtin = ["FIX.4.2", "FIX.4.4", "FIXT.1.1", "FIX.5.0SP2"]
default_appl_ver_id = "9"

# [[dictionaries.files]]
# path = "dicts/venue.toml"
# envelope = "FIX.4.4"

[transport]
connect_timeout = "5s"
read_timeout = "30s"
write_timeout = "15s"
max_buffer_bytes = 2097152

[transport.tls]
enabled = false
mutual = false
cert_file = ""
key_file = ""
ca_file = ""

[server]
name = "inspector"
addr = ":8088"
cors_origins = ["http://localhost:3000"]
auth_token = ""
`

const minimalTemplate = `[dictionaries]
builtin = ["FIX.4.4"]

[server]
addr = "127.0.0.1:8088"
`
