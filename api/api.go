// Package api embeds the OpenAPI document of the convo HTTP server.
package api

import _ "embed"

// Spec is the OpenAPI 3 document served on /openapi.yaml and used to
// validate incoming requests.
//
//go:embed openapi.yaml
var Spec []byte
