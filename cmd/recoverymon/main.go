// Command recoverymon runs the post-operative recovery monitoring
// workflows as an HTTP service or as interactive terminal sessions.
package main

import (
	"github.com/alecthomas/kong"
)

type CLI struct {
	EnvFile  string `name:"env-file" default:".env" help:"dotenv file loaded before the config file."`
	Config   string `name:"config" short:"c" type:"path" help:"YAML config file."`
	LogLevel string `name:"log-level" help:"Override LOG_LEVEL."`
	Store    string `name:"store" help:"Override STORE_DRIVER (memory or sqlite)."`

	Serve   ServeCmd   `cmd:"" help:"Serve the session HTTP API and run the idle session purge."`
	Doctor  DoctorCmd  `cmd:"" help:"Register patients and set up their monitoring."`
	Patient PatientCmd `cmd:"" help:"Log in as a patient and submit daily readings."`
	Session SessionCmd `cmd:"" help:"Inspect stored sessions."`
	Purge   PurgeCmd   `cmd:"" help:"Remove idle sessions now."`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("recoverymon"),
		kong.Description("Post-operative recovery monitoring for doctors and patients."),
		kong.UsageOnError(),
	)

	rt, err := newRuntime(cli)
	ctx.FatalIfErrorf(err)

	err = run(ctx, rt)
	_ = rt.Close()
	ctx.FatalIfErrorf(err)
}

func run(ctx *kong.Context, rt *runtime) error {
	defer rt.recoverPanic("main")
	return ctx.Run(rt)
}
