package version

import (
	"runtime"

	"github.com/mitchellh/mapstructure"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// set at build time with -ldflags "-X github.com/metal-toolbox/bootorder/internal/version.GitCommit=..."
var (
	GitCommit string
	GitBranch string
	GitTag    string
	BuildDate string
)

type Version struct {
	GitCommit string `json:"git_commit" mapstructure:"git_commit"`
	GitBranch string `json:"git_branch" mapstructure:"git_branch"`
	GitTag    string `json:"git_tag" mapstructure:"git_tag"`
	BuildDate string `json:"build_date" mapstructure:"build_date"`
	GoVersion string `json:"go_version" mapstructure:"go_version"`
}

func Current() *Version {
	return &Version{
		GitCommit: GitCommit,
		GitBranch: GitBranch,
		GitTag:    GitTag,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
}

// AsMap returns the version as a map, for use as log fields.
func (v *Version) AsMap() (map[string]any, error) {
	out := map[string]any{}
	if err := mapstructure.Decode(v, &out); err != nil {
		return nil, err
	}

	return out, nil
}

func (v *Version) AsLogFields() []any {
	return []any{
		"commit", v.GitCommit,
		"branch", v.GitBranch,
		"tag", v.GitTag,
		"built", v.BuildDate,
		"go", v.GoVersion,
	}
}

// ExportBuildInfoMetric publishes the build information as a constant gauge.
func ExportBuildInfoMetric() {
	buildInfo := promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bootorder_build_info",
			Help: "A metric with a constant '1' value, labeled by version information",
		},
		[]string{"branch", "commit", "date", "tag", "goversion"},
	)

	v := Current()
	buildInfo.WithLabelValues(v.GitBranch, v.GitCommit, v.BuildDate, v.GitTag, v.GoVersion).Set(1)
}
