package deploy_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/pseudomuto/bluegreen/pkg/deploy"
	"github.com/pseudomuto/bluegreen/pkg/utils"
	"github.com/stretchr/testify/require"
)

func TestPlan_Validate(t *testing.T) {
	tests := []struct {
		name   string
		plan   deploy.Plan
		blue   utils.Identifier
		green  utils.Identifier
		errMsg string
	}{
		{
			name:  "suffix",
			plan:  deploy.Plan{ProductionDatabase: "prod", StagingSuffix: "blue", Workers: 1},
			blue:  "PROD",
			green: "PROD_BLUE",
		},
		{
			name:  "default suffix",
			plan:  deploy.Plan{ProductionDatabase: "PROD", Workers: 20},
			blue:  "PROD",
			green: "PROD_STAGING",
		},
		{
			name:  "explicit staging database",
			plan:  deploy.Plan{ProductionDatabase: "PROD", StagingDatabase: "analytics_next", Workers: 20},
			blue:  "PROD",
			green: "ANALYTICS_NEXT",
		},
		{
			name:   "both naming options",
			plan:   deploy.Plan{ProductionDatabase: "PROD", StagingDatabase: "FOO", StagingSuffix: "BAR", Workers: 20},
			errMsg: "mutually exclusive",
		},
		{
			name:   "missing production database",
			plan:   deploy.Plan{Workers: 20},
			errMsg: "production database is required",
		},
		{
			name:   "invalid production database",
			plan:   deploy.Plan{ProductionDatabase: "prod-db", Workers: 20},
			errMsg: "invalid identifier",
		},
		{
			name:   "invalid staging database",
			plan:   deploy.Plan{ProductionDatabase: "PROD", StagingDatabase: `"quoted"`, Workers: 20},
			errMsg: "invalid identifier",
		},
		{
			name:   "same database",
			plan:   deploy.Plan{ProductionDatabase: "PROD", StagingDatabase: "prod", Workers: 20},
			errMsg: "both PROD",
		},
		{
			name:   "no workers",
			plan:   deploy.Plan{ProductionDatabase: "PROD", Workers: 0},
			errMsg: "workers must be at least 1",
		},
		{
			name:   "negative drain",
			plan:   deploy.Plan{ProductionDatabase: "PROD", Workers: 1, DrainMinutes: -1},
			errMsg: "drain minutes must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.plan.Validate()
			if tt.errMsg != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tt.errMsg)

				var cfgErr *deploy.ConfigurationError
				require.True(t, errors.As(err, &cfgErr))
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.blue, tt.plan.Blue())
			require.Equal(t, tt.green, tt.plan.Green())
		})
	}
}

func TestBuildOptions_Args(t *testing.T) {
	tests := []struct {
		name     string
		opts     deploy.BuildOptions
		expected []string
	}{
		{
			name:     "defaults",
			expected: []string{"build", "--fail-fast"},
		},
		{
			name:     "selectors",
			opts:     deploy.BuildOptions{Selectors: []string{"-s", "tag:hourly"}},
			expected: []string{"build", "--fail-fast", "-s", "tag:hourly"},
		},
		{
			name: "defer ignores selectors",
			opts: deploy.BuildOptions{Defer: true, Selectors: []string{"-s", "tag:hourly"}},
			expected: []string{
				"build", "--fail-fast", "--defer", "--state", "logs", "-s", "state:modified+",
			},
		},
		{
			name: "everything",
			opts: deploy.BuildOptions{Defer: true, FullRefresh: true, Target: "prod"},
			expected: []string{
				"build", "--fail-fast", "--defer", "--state", "logs", "-s", "state:modified+",
				"--full-refresh", "-t", "prod",
			},
		},
		{
			name:     "full refresh and target",
			opts:     deploy.BuildOptions{FullRefresh: true, Target: "ci"},
			expected: []string{"build", "--fail-fast", "--full-refresh", "-t", "ci"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, tt.opts.Args())
		})
	}
}

func TestPlan_Phases(t *testing.T) {
	all := []deploy.State{
		deploy.StatePrecheck,
		deploy.StateCreated,
		deploy.StateSchemasCloned,
		deploy.StateBuilt,
		deploy.StateGrantsCloned,
		deploy.StateSwapped,
		deploy.StateDropped,
		deploy.StateDone,
	}

	plan := deploy.Plan{DropStagingAtStart: true}
	require.Equal(t, all, plan.Phases())

	plan = deploy.Plan{DrainMinutes: 5}
	require.Equal(t, all, plan.Phases())

	plan = deploy.Plan{DropStagingAtStart: true, DrainMinutes: 5}
	phases := plan.Phases()
	require.Len(t, phases, len(all)+1)
	require.Equal(t, deploy.StateDrain, phases[1])
}
