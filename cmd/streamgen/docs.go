package main

// General API documentation for swaggo. Run `swag init -g cmd/streamgen/docs.go` to regenerate docs.
//
// @title           streamgen API
// @version         1.0
// @description     HTTP API for queued, streamed text generation.
//
// @contact.name   streamgen maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
