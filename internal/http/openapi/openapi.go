// Package openapi embeds the kiosk API description served at /openapi.yaml.
package openapi

import _ "embed"

//go:embed openapi.yaml
var YAML []byte
