package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	cfgpkg "github.com/taoyao-code/iot-sdcp/internal/config"
	"github.com/taoyao-code/iot-sdcp/internal/protocol/sdcp"
)

// errRejected 设备返回了非 OK 结果
var errRejected = errors.New("device rejected the request")

func getCmd(g *globalConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "get NAME ...",
		Short: "Read device parameters (GETP)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := make([]sdcp.ParamItem, 0, len(args))
			for _, name := range args {
				params = append(params, sdcp.Param(name, ""))
			}
			return g.exchange(cmd, sdcp.NewRequest(sdcp.CommandGETP, params...))
		},
	}
}

func setCmd(g *globalConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "set NAME VALUE",
		Short: "Write a device parameter (SETP)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return g.exchange(cmd, sdcp.NewRequest(sdcp.CommandSETP, sdcp.Param(args[0], args[1])))
		},
	}
}

func infoCmd(g *globalConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Check that the device answers INFO",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, _ := sdcp.ParseCommandLine("INFO")
			resp, err := g.request(cmd.Context(), req)
			if isEmptyResponse(err) {
				// 设备对 INFO 返回空参数帧，能收到即说明可达
				fmt.Fprintf(cmd.OutOrStdout(), "Device %s is reachable\n", g.cfg.Client.Target)
				return nil
			}
			if err != nil {
				return err
			}
			return writeFrame(cmd.OutOrStdout(), resp, g.printJSON)
		},
	}
}

func configCmd(g *globalConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := cfgpkg.Dump(g.cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

// exchange 发送请求并打印响应
func (g *globalConfig) exchange(cmd *cobra.Command, req sdcp.Frame) error {
	resp, err := g.request(cmd.Context(), req)
	if isEmptyResponse(err) {
		// FAILED 响应不带参数，在本端解码为非法帧
		return fmt.Errorf("%w: %s", errRejected, sdcp.ResultFailed)
	}
	if err != nil {
		return err
	}
	if err := writeFrame(cmd.OutOrStdout(), resp, g.printJSON); err != nil {
		return err
	}
	if !resp.OK() {
		return fmt.Errorf("%w: %s", errRejected, resp.Result)
	}
	return nil
}

// isEmptyResponse 响应帧可读但没有参数
func isEmptyResponse(err error) bool {
	var reqErr *sdcp.RequestError
	return errors.As(err, &reqErr) && reqErr.Op == sdcp.OpDecode && errors.Is(err, sdcp.ErrInvalidPacket)
}

func writeFrame(w io.Writer, f sdcp.Frame, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(f)
	}
	fmt.Fprintf(w, "Command: %s\n", f.Command)
	fmt.Fprintf(w, "Result: %s\n", f.Result)
	for _, p := range f.Parameters {
		fmt.Fprintf(w, "Parameter: %s=%s\n", p.Name, p.Value)
	}
	return nil
}
