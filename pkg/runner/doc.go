// Package runner implements deploy.Runner by running the Transformation
// Runner (dbt by default) as a subprocess in the project directory.
package runner
