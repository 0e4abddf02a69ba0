// Package tracks owns the sensor-report correlation and prediction engine.
//
// Responsibilities: bounded report intake from concurrent sensor producers,
// identity (or gated) association of reports to tracks, alpha-beta-gamma
// state prediction, and track lifecycle (spawn, associate, coast, evict).
// Key types: Track, Report, Table, ReportQueue, Predictor, Correlator, Manager.
//
// Locking: the report queue and the track table each own one mutex, held only
// for a single push/pop or a single table mutation/snapshot. The correlation
// and prediction work of a frame runs on a private copy of the table.
//
// No SQL/database code is allowed in this package; persistence happens
// behind the Recorder interface.
package tracks
