// Command oxytrace renders the default sphere scene either to an image file or interactively in a window.
package main

import (
	"log"
	"os"
	"runtime"

	"github.com/urfave/cli"
)

// GLFW and the display surface must stay on the main thread.
func init() {
	runtime.LockOSThread()
}

func main() {
	app := cli.NewApp()
	app.Name = "oxytrace"
	app.Usage = "progressive path tracer for sphere scenes"
	app.Version = "0.1.0"
	app.Commands = []cli.Command{
		{
			Name:      "render",
			Usage:     "trace a fixed number of samples headlessly and write the result to an image file",
			ArgsUsage: " ",
			Flags:     append(tracerFlags("cpu"), renderFlags()...),
			Action:    render,
		},
		{
			Name:      "view",
			Usage:     "open a window and trace progressively; W/A/S/D/Q/E move the camera, R recomputes, P toggles the profiler, Esc quits",
			ArgsUsage: " ",
			Flags:     append(tracerFlags("wgpu"), viewFlags()...),
			Action:    view,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
