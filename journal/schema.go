package journal

// Times are stored as UTC unix nanoseconds.
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	as_of INTEGER NOT NULL,
	created_at INTEGER NOT NULL,
	intents INTEGER NOT NULL,
	directional INTEGER NOT NULL,
	warnings INTEGER NOT NULL,
	hazard INTEGER NOT NULL,
	hazard_score REAL NOT NULL,
	hazard_reason TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS decisions (
	run_id TEXT NOT NULL REFERENCES runs(run_id),
	seq INTEGER NOT NULL,
	ts INTEGER NOT NULL,
	symbol TEXT NOT NULL,
	side TEXT NOT NULL,
	entry_type TEXT NOT NULL,
	entry_price REAL,
	tag TEXT NOT NULL,
	priority INTEGER NOT NULL,
	confidence REAL NOT NULL,
	units REAL NOT NULL,
	notional_cap REAL NOT NULL,
	cost_multiplier REAL NOT NULL,
	tp REAL,
	sl REAL,
	ttl_bars INTEGER,
	plan_tp_pips REAL,
	plan_sl_pips REAL,
	plan_ev REAL,
	plan_time_stop INTEGER,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS warnings (
	run_id TEXT NOT NULL REFERENCES runs(run_id),
	seq INTEGER NOT NULL,
	stage TEXT NOT NULL,
	code TEXT NOT NULL,
	symbol TEXT NOT NULL,
	tag TEXT NOT NULL,
	msg TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_runs_as_of ON runs(as_of);
CREATE INDEX IF NOT EXISTS idx_decisions_symbol ON decisions(symbol);
`
