package main

import (
	"github.com/spf13/cobra"

	"github.com/flowKKo/chat-central-sub002/internal/config"
	"github.com/flowKKo/chat-central-sub002/internal/model"
)

const (
	kvConfigWidgetEnabled = "config.widget.enabled"
	kvConfigTheme         = "config.theme"
)

func newConfigCommand(deps **Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or set persistent configuration",
	}
	cmd.AddCommand(newConfigShowCommand(deps))
	cmd.AddCommand(newConfigSetCommand(deps))
	return cmd
}

func newConfigShowCommand(deps **Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration plus persisted overrides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d := *deps
			widget, _, err := d.Store.GetKV(cmd.Context(), kvConfigWidgetEnabled)
			if err != nil {
				return err
			}
			theme, _, err := d.Store.GetKV(cmd.Context(), kvConfigTheme)
			if err != nil {
				return err
			}

			if flagOutput == "json" {
				return outputJSON(map[string]interface{}{
					"config":        d.Config,
					"widgetEnabled": widget,
					"theme":         theme,
				})
			}
			printText("Store path:     %s\n", d.Config.StorePath)
			printText("Max archive:    %d bytes\n", d.Config.MaxArchiveSize)
			printText("Widget enabled: %s (file default: %v)\n", fallback(widget, d.Config.WidgetEnabled), d.Config.WidgetEnabled)
			printText("Theme:          %s (file default: %s)\n", fallback(theme, d.Config.Theme), d.Config.Theme)
			return nil
		},
	}
}

func fallback(persisted string, def interface{}) string {
	if persisted != "" {
		return persisted
	}
	return interfaceToString(def)
}

func interfaceToString(v interface{}) string {
	switch t := v.(type) {
	case bool:
		if t {
			return "true"
		}
		return "false"
	case config.Theme:
		return string(t)
	default:
		return ""
	}
}

func newConfigSetCommand(deps **Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "set <widget.enabled|theme> <value>",
		Short: "Persist a configuration override to the store's KV table",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := *deps
			key, value := args[0], args[1]

			switch key {
			case "widget.enabled":
				if value != "true" && value != "false" {
					return model.NewError(model.KindValidation, "widget.enabled must be true or false", nil)
				}
				if err := d.Store.SetKV(cmd.Context(), kvConfigWidgetEnabled, value); err != nil {
					return err
				}
			case "theme":
				switch value {
				case "light", "dark", "system":
				default:
					return model.NewError(model.KindValidation, "theme must be light, dark, or system", nil)
				}
				if err := d.Store.SetKV(cmd.Context(), kvConfigTheme, value); err != nil {
					return err
				}
			default:
				return model.NewError(model.KindValidation, "unknown config key: "+key, nil)
			}

			printText("%s = %s\n", key, value)
			return nil
		},
	}
}
