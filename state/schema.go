package state

var (
	// table that stores the life cycle of a bridge transfer
	transferTable = `CREATE TABLE IF NOT EXISTS transfers (
		id BIGINT UNSIGNED PRIMARY KEY NOT NULL,
		sender VARCHAR(128) NOT NULL,
		recipient VARCHAR(128) NOT NULL,
		token VARCHAR(32) NOT NULL,
		amount BIGINT UNSIGNED NOT NULL,
		fee BIGINT UNSIGNED NOT NULL DEFAULT 0,
		status VARCHAR(10) NOT NULL,
		createdAt BIGINT UNSIGNED NOT NULL,
		unlockAt BIGINT UNSIGNED NOT NULL,
		closedAt BIGINT UNSIGNED NOT NULL DEFAULT 0,
		CONSTRAINT chk_status CHECK (status IN ('pending', 'completed', 'cancelled')),
		CONSTRAINT chk_amount CHECK (amount > 0),
		CONSTRAINT chk_fee CHECK (fee <= amount),
		CONSTRAINT chk_unlockAt CHECK (unlockAt >= createdAt),
		CONSTRAINT chk_sender CHECK (sender != ''),
		CONSTRAINT chk_recipient CHECK (recipient != '')
	);
	CREATE INDEX IF NOT EXISTS idx_transfers_status ON transfers (status);`

	// one row per (transfer, validator), the primary key makes a second
	// confirmation of the same validator a no-op
	confirmationTable = `CREATE TABLE IF NOT EXISTS confirmations (
		transferId BIGINT UNSIGNED NOT NULL,
		validator VARCHAR(128) NOT NULL,
		height BIGINT UNSIGNED NOT NULL,
		PRIMARY KEY (transferId, validator),
		FOREIGN KEY (transferId) REFERENCES transfers (id)
	);`

	validatorTable = `CREATE TABLE IF NOT EXISTS validators (
		principal VARCHAR(128) PRIMARY KEY NOT NULL,
		weight BIGINT UNSIGNED NOT NULL,
		active BOOLEAN NOT NULL,
		CONSTRAINT chk_weight CHECK (weight >= 1)
	);`

	tokenTable = `CREATE TABLE IF NOT EXISTS tokens (
		symbol VARCHAR(32) PRIMARY KEY NOT NULL,
		supported BOOLEAN NOT NULL,
		CONSTRAINT chk_symbol CHECK (symbol != '')
	);`

	// table stores key-value pairs. Key is a 32-byte hex string without prefix '0x',
	// value is the text form of the stored field.
	kvTable = `CREATE TABLE IF NOT EXISTS kv (
		key CHAR(64) PRIMARY KEY NOT NULL,
		value TEXT NOT NULL
	);`

	transferColumns = " id, sender, recipient, token, amount, fee, status, createdAt, unlockAt, closedAt "
)
