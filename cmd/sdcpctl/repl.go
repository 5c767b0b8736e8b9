package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taoyao-code/iot-sdcp/internal/protocol/sdcp"
)

func replCmd(g *globalConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactive SET/GET/INFO session, type exit to quit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Target: %s\n", g.cfg.Client.Target)
			fmt.Fprintln(out, "Commands: SET <name> <value> | GET <name> ... | INFO | exit")

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					return scanner.Err()
				}
				line := strings.TrimSpace(scanner.Text())
				switch {
				case line == "":
					continue
				case strings.EqualFold(line, "exit"):
					return nil
				}

				req, err := sdcp.ParseCommandLine(line)
				if err != nil {
					fmt.Fprintf(out, "Error: %v\n", err)
					continue
				}
				resp, err := g.request(cmd.Context(), req)
				switch {
				case isEmptyResponse(err) && req.Command == sdcp.CommandINFO:
					fmt.Fprintln(out, "Device is reachable")
				case isEmptyResponse(err):
					fmt.Fprintln(out, "Command execution failed")
				case err != nil:
					fmt.Fprintf(out, "Error: %v\n", err)
				default:
					_ = writeFrame(out, resp, g.printJSON)
				}
			}
		},
	}
}
