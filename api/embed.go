// Package api 内嵌 OpenAPI 描述文件，供请求校验中间件使用
package api

import "embed"

//go:embed openapi/*.yaml
var OpenAPIFS embed.FS
