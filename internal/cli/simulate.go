package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	simulateRatio float64
	simulatePrior float64
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-notify",
	Short: "用给定比率模拟一次变化通知并实际派发",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateRatio <= 0 {
			return errors.New("--ratio 必须大于 0")
		}

		ratio := decimal.NewFromFloat(simulateRatio)
		var prior *decimal.Decimal
		if simulatePrior > 0 {
			p := decimal.NewFromFloat(simulatePrior)
			prior = &p
		}
		return getApp().SimulateNotify(cmd.Context(), ratio, prior)
	},
}

func init() {
	simulateCmd.Flags().Float64Var(&simulateRatio, "ratio", 0, "新的 Sushi/xSushi 比率")
	simulateCmd.Flags().Float64Var(&simulatePrior, "prior", 0, "上一个比率, 用于计算变化百分比")
}
