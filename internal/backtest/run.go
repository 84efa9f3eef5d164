package backtest

// Run validates the parameters and executes one simulation in the configured
// mode.
func Run(params Params, bars []PriceBar) (*Result, error) {
	if params.Mode == ModeShortDCA {
		return NewShortEngine(params, bars).Run()
	}
	return NewEngine(params, bars).Run()
}
