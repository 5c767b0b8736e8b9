package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taoyao-code/iot-sdcp/internal/device"
	"github.com/taoyao-code/iot-sdcp/internal/house"
	"github.com/taoyao-code/iot-sdcp/internal/protocol/sdcp"
)

type houseConfig struct {
	name      string
	room      string
	device    string
	useRedis  bool
	thermName string
}

func houseCmd(g *globalConfig) *cobra.Command {
	hCfg := &houseConfig{}
	houseCmd := &cobra.Command{
		Use:   "house",
		Short: "Print a house report built from live device state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := g.buildHouse(cmd, hCfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if hCfg.device != "" {
				status, err := h.DeviceStatus(hCfg.room, hCfg.device)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, status)
				return nil
			}
			fmt.Fprint(out, h.Info())
			return nil
		},
	}
	houseCmd.Flags().StringVar(&hCfg.name, "name", "My smart house", "House name")
	houseCmd.Flags().StringVar(&hCfg.room, "room", "Living room", "Room holding the devices")
	houseCmd.Flags().StringVarP(&hCfg.device, "device", "d", "", "Only print the status of this device")
	houseCmd.Flags().BoolVar(&hCfg.useRedis, "redis", false, "Add a thermometer fed by the latest Redis telemetry")
	houseCmd.Flags().StringVar(&hCfg.thermName, "thermometer", "Thermometer #1", "Thermometer name")
	return houseCmd
}

// buildHouse 通过 GETP 读取插座状态，可选地从 Redis 读取温度
func (g *globalConfig) buildHouse(cmd *cobra.Command, hCfg *houseConfig) (*house.House, error) {
	h, err := house.New(hCfg.name)
	if err != nil {
		return nil, err
	}
	room, err := house.NewRoom(hCfg.room)
	if err != nil {
		return nil, err
	}
	if err := h.AddRoom(room); err != nil {
		return nil, err
	}

	resp, err := g.request(cmd.Context(), sdcp.NewRequest(sdcp.CommandGETP,
		sdcp.Param(sdcp.ParamStatus, ""), sdcp.Param(sdcp.ParamPwrcon, "")))
	if err != nil {
		return nil, fmt.Errorf("query socket: %w", err)
	}
	sock := device.NewSocket(g.cfg.App.DeviceName)
	if err := sock.Apply(resp.Parameters); err != nil {
		return nil, fmt.Errorf("socket state: %w", err)
	}
	if err := room.Add(house.NewSocketDevice(sock, g.cfg.Client.Target)); err != nil {
		return nil, err
	}

	if hCfg.useRedis {
		read, cleanup, err := g.redisReader()
		if err != nil {
			return nil, err
		}
		defer cleanup()
		therm := device.NewThermometer(hCfg.thermName)
		if v := read(cmd.Context()); v != missingValue {
			if err := therm.SetReading(v); err != nil {
				g.logger.Warn("invalid temperature reading", zap.String("value", v), zap.Error(err))
			}
		}
		if err := room.Add(house.NewThermometerDevice(therm, g.cfg.UDP.ListenAddr)); err != nil {
			return nil, err
		}
	}
	return h, nil
}
