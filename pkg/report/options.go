package report

import (
	"io"

	"github.com/charmbracelet/log"
)

// OptimizeMode classifies how the build exposes optimization choice.
type OptimizeMode string

const (
	// OptimizeAll: the build declares a standard optimize option, so a
	// packager can select any release mode.
	OptimizeAll OptimizeMode = "all"
	// OptimizeExplicit: the build only offers a boolean release toggle.
	OptimizeExplicit OptimizeMode = "explicit"
	// OptimizeNone: the build hardcodes its optimization mode.
	OptimizeNone OptimizeMode = "none"
)

// Critical option names a dependent packaging consumer needs to steer
// cross compilation.
const (
	optTarget        = "target"
	optDynamicLinker = "dynamic-linker"
	optCPU           = "cpu"
)

// Processed is a report with build-critical options split out.
type Processed struct {
	Report *Report // remaining pass-through options only

	HasTarget        bool
	HasDynamicLinker bool
	HasCPU           bool

	Optimize OptimizeMode
}

// PostProcess splits build-critical options out of the report's option
// list. Missing critical options are advisory only: they matter to a
// consumer of the report, not to collection itself.
func PostProcess(r *Report, logger *log.Logger) *Processed {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	p := &Processed{Optimize: OptimizeNone}
	out := &Report{
		SystemLibraries:    r.SystemLibraries,
		SystemIntegrations: r.SystemIntegrations,
	}

	var sawOptimize, sawRelease bool
	for _, opt := range r.UserOptions {
		switch {
		case opt.Name == optTarget:
			p.HasTarget = true
		case opt.Name == optDynamicLinker:
			p.HasDynamicLinker = true
		case opt.Name == optCPU:
			p.HasCPU = true
		case opt.Name == "optimize" && opt.Type == "enum":
			sawOptimize = true
		case opt.Name == "release" && opt.Type == "bool":
			sawRelease = true
		default:
			out.UserOptions = append(out.UserOptions, opt)
		}
	}
	p.Report = out

	if !p.HasTarget && !p.HasDynamicLinker && !p.HasCPU {
		logger.Warn("build declares none of the target/dynamic-linker/cpu options; recipe consumers cannot steer cross compilation")
	}

	switch {
	case sawOptimize && sawRelease:
		// The standard build API makes these mutually exclusive, so
		// seeing both means a hand-rolled option shadows one of them.
		logger.Warn("build declares both optimize and release options; classifying as optimize")
		p.Optimize = OptimizeAll
	case sawOptimize:
		p.Optimize = OptimizeAll
		logger.Warn("build exposes full optimize choice; recipe should pin a release mode")
	case sawRelease:
		p.Optimize = OptimizeExplicit
		logger.Warn("build exposes only a boolean release toggle")
	default:
		logger.Warn("build hardcodes its optimize mode; recipe cannot select one")
	}

	return p
}
