package main

// General API documentation for swaggo. Run `swag init` and build with
// -tags=swagger to serve it.
//
// @title           mlxhub API
// @version         1.0
// @description     Control and status API for the model-serving worker orchestration daemon.
//
// @contact.name   mlxhub maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
