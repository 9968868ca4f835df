package dashboard

import "errors"

// ErrNoUsableData means no analysis could be fetched, recovered and shaped
// into a matrix, so there is nothing to tabulate or plot.
var ErrNoUsableData = errors.New("no valid analysis data to plot")
