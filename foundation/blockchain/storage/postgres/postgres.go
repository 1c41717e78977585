// Package postgres implements the ability to read and write blocks and the
// ledger tables to a Postgres database.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/cadcoin/blockchain/foundation/blockchain/database"
	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// queryTimeout bounds every statement issued through the storage interface.
const queryTimeout = 10 * time.Second

// Config represents the settings needed to connect to Postgres.
type Config struct {
	URL      string
	MaxConns int32
}

// Postgres represents the serialization implementation for reading and
// storing blocks in Postgres. This implements the database.Storage interface.
type Postgres struct {
	pool *pgxpool.Pool
	db   *sql.DB
}

// Open connects to Postgres, runs the embedded migrations and returns a
// value ready for use.
func Open(ctx context.Context, cfg Config) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	if cfg.MaxConns > 0 {
		config.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	p := Postgres{
		pool: pool,
		db:   stdlib.OpenDBFromPool(pool),
	}

	// Migrations are idempotent.
	if err := p.runMigrations(); err != nil {
		p.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &p, nil
}

// NewWithDB constructs a Postgres value over an existing connection. The
// schema is expected to exist already.
func NewWithDB(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Close releases the connections held by the storage.
func (p *Postgres) Close() error {
	err := p.db.Close()
	if p.pool != nil {
		p.pool.Close()
	}

	return err
}

// Write stores the block, its transactions and the balance and asset
// changes in a single database transaction.
func (p *Postgres) Write(blockData database.BlockData, delta database.Delta) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	const qBlock = `
	INSERT INTO blocks
		(block_index, hash, prev_hash, mined_at, nonce, difficulty, miner, trans_root)
	VALUES
		($1, $2, $3, $4, $5, $6, $7, $8)`

	hdr := blockData.Header
	if _, err := tx.ExecContext(ctx, qBlock, int64(hdr.Index), blockData.Hash, hdr.PrevBlockHash, int64(hdr.TimeStamp), int64(hdr.Nonce), int(hdr.Difficulty), string(hdr.Miner), hdr.TransRoot); err != nil {
		return fmt.Errorf("writing block %d: %w", hdr.Index, err)
	}

	const qTran = `
	INSERT INTO transactions
		(hash, block_index, position, kind, sender, recipient, symbol, amount, fee, created_at)
	VALUES
		($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	for i, trn := range blockData.Trans {
		if _, err := tx.ExecContext(ctx, qTran, trn.ID, int64(hdr.Index), i, string(trn.Kind), string(trn.From), string(trn.To), string(trn.Symbol), trn.Amount, trn.Fee, int64(trn.TimeStamp)); err != nil {
			return fmt.Errorf("writing transaction %s: %w", trn.ID, err)
		}
	}

	const qBalance = `
	INSERT INTO balances
		(address, symbol, amount)
	VALUES
		($1, $2, $3)
	ON CONFLICT (address, symbol) DO UPDATE SET amount = EXCLUDED.amount`

	for _, rec := range delta.Balances {
		if _, err := tx.ExecContext(ctx, qBalance, string(rec.Address), string(rec.Symbol), rec.Amount); err != nil {
			return fmt.Errorf("writing balance %s/%s: %w", rec.Address, rec.Symbol, err)
		}
	}

	for _, asset := range delta.Assets {
		if err := upsertAsset(ctx, tx, asset); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// GetBlock reads the block and its ordered transactions by number.
func (p *Postgres) GetBlock(num uint64) (database.BlockData, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	const qBlock = `
	SELECT
		hash, prev_hash, mined_at, nonce, difficulty, miner, trans_root
	FROM
		blocks
	WHERE
		block_index = $1`

	var (
		bd         database.BlockData
		minedAt    int64
		nonce      int64
		difficulty int
		miner      string
	)

	err := p.db.QueryRowContext(ctx, qBlock, int64(num)).Scan(&bd.Hash, &bd.Header.PrevBlockHash, &minedAt, &nonce, &difficulty, &miner, &bd.Header.TransRoot)
	if err != nil {
		return database.BlockData{}, fmt.Errorf("reading block %d: %w", num, err)
	}

	bd.Header.Index = num
	bd.Header.TimeStamp = uint64(minedAt)
	bd.Header.Nonce = uint64(nonce)
	bd.Header.Difficulty = uint16(difficulty)
	bd.Header.Miner = database.Address(miner)

	const qTrans = `
	SELECT
		hash, kind, sender, recipient, symbol, amount, fee, created_at
	FROM
		transactions
	WHERE
		block_index = $1
	ORDER BY
		position`

	rows, err := p.db.QueryContext(ctx, qTrans, int64(num))
	if err != nil {
		return database.BlockData{}, fmt.Errorf("reading transactions for block %d: %w", num, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			trn       database.BlockTx
			kind      string
			from      string
			to        string
			symbol    string
			createdAt int64
		)

		if err := rows.Scan(&trn.ID, &kind, &from, &to, &symbol, &trn.Amount, &trn.Fee, &createdAt); err != nil {
			return database.BlockData{}, fmt.Errorf("scanning transaction: %w", err)
		}

		trn.Kind = database.Kind(kind)
		trn.From = database.Address(from)
		trn.To = database.Address(to)
		trn.Symbol = database.Symbol(symbol)
		trn.TimeStamp = uint64(createdAt)

		bd.Trans = append(bd.Trans, trn)
	}

	if err := rows.Err(); err != nil {
		return database.BlockData{}, fmt.Errorf("iterating transactions: %w", err)
	}

	return bd, nil
}

// ForEach returns an iterator to walk through all the blocks
// starting with the genesis block.
func (p *Postgres) ForEach() database.Iterator {
	return &postgresIterator{storage: p}
}

// WriteAsset stores the stablecoin definition and its minters.
func (p *Postgres) WriteAsset(asset database.AssetDefinition) error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := upsertAsset(ctx, tx, asset); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// LoadAssets returns the stablecoin definitions ordered by symbol.
func (p *Postgres) LoadAssets() ([]database.AssetDefinition, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	const qAssets = `
	SELECT
		symbol, name, backed_by, collateral_ratio, max_supply, minted, creator, created_at
	FROM
		stable_coins
	ORDER BY
		symbol`

	rows, err := p.db.QueryContext(ctx, qAssets)
	if err != nil {
		return nil, fmt.Errorf("reading stable coins: %w", err)
	}
	defer rows.Close()

	var assets []database.AssetDefinition
	index := make(map[database.Symbol]int)

	for rows.Next() {
		var (
			asset     database.AssetDefinition
			symbol    string
			creator   string
			createdAt int64
		)

		if err := rows.Scan(&symbol, &asset.Name, &asset.BackedBy, &asset.CollateralRatio, &asset.MaxSupply, &asset.Minted, &creator, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning stable coin: %w", err)
		}

		asset.Symbol = database.Symbol(symbol)
		asset.Creator = database.Address(creator)
		asset.CreatedAt = uint64(createdAt)

		index[asset.Symbol] = len(assets)
		assets = append(assets, asset)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stable coins: %w", err)
	}

	const qMinters = `
	SELECT
		symbol, address
	FROM
		authorized_minters
	ORDER BY
		symbol, position`

	mrows, err := p.db.QueryContext(ctx, qMinters)
	if err != nil {
		return nil, fmt.Errorf("reading minters: %w", err)
	}
	defer mrows.Close()

	for mrows.Next() {
		var symbol, address string
		if err := mrows.Scan(&symbol, &address); err != nil {
			return nil, fmt.Errorf("scanning minter: %w", err)
		}

		i, exists := index[database.Symbol(symbol)]
		if !exists {
			continue
		}
		assets[i].Minters = append(assets[i].Minters, database.Address(address))
	}

	if err := mrows.Err(); err != nil {
		return nil, fmt.Errorf("iterating minters: %w", err)
	}

	return assets, nil
}

// LoadBalances returns the stored balances ordered by address and symbol.
func (p *Postgres) LoadBalances() ([]database.BalanceRecord, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	const q = `
	SELECT
		address, symbol, amount
	FROM
		balances
	ORDER BY
		address, symbol`

	rows, err := p.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("reading balances: %w", err)
	}
	defer rows.Close()

	var records []database.BalanceRecord
	for rows.Next() {
		var (
			address string
			symbol  string
			amount  decimal.Decimal
		)

		if err := rows.Scan(&address, &symbol, &amount); err != nil {
			return nil, fmt.Errorf("scanning balance: %w", err)
		}

		records = append(records, database.BalanceRecord{
			Address: database.Address(address),
			Symbol:  database.Symbol(symbol),
			Amount:  amount,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating balances: %w", err)
	}

	return records, nil
}

// Reset will clear out every table.
func (p *Postgres) Reset() error {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	const q = `TRUNCATE authorized_minters, stable_coins, balances, transactions, blocks`

	if _, err := p.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("truncating tables: %w", err)
	}

	return nil
}

// =============================================================================

func upsertAsset(ctx context.Context, tx *sql.Tx, asset database.AssetDefinition) error {
	const qAsset = `
	INSERT INTO stable_coins
		(symbol, name, backed_by, collateral_ratio, max_supply, minted, creator, created_at)
	VALUES
		($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (symbol) DO UPDATE SET minted = EXCLUDED.minted`

	if _, err := tx.ExecContext(ctx, qAsset, string(asset.Symbol), asset.Name, asset.BackedBy, asset.CollateralRatio, asset.MaxSupply, asset.Minted, string(asset.Creator), int64(asset.CreatedAt)); err != nil {
		return fmt.Errorf("writing stable coin %s: %w", asset.Symbol, err)
	}

	const qMinter = `
	INSERT INTO authorized_minters
		(symbol, address, position)
	VALUES
		($1, $2, $3)
	ON CONFLICT (symbol, address) DO NOTHING`

	for i, minter := range asset.Minters {
		if _, err := tx.ExecContext(ctx, qMinter, string(asset.Symbol), string(minter), i); err != nil {
			return fmt.Errorf("writing minter %s for %s: %w", minter, asset.Symbol, err)
		}
	}

	return nil
}

func (p *Postgres) runMigrations() error {
	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	// The migration driver closes the handle it is given, so it gets its own.
	driver, err := migratepgx.WithInstance(stdlib.OpenDBFromPool(p.pool), &migratepgx.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// =============================================================================

// postgresIterator walks the blocks table in index order. This implements
// the database Iterator interface.
type postgresIterator struct {
	storage *Postgres
	current uint64
	eoc     bool
}

// Next retrieves the next block from the database.
func (pi *postgresIterator) Next() (database.BlockData, error) {
	if pi.eoc {
		return database.BlockData{}, fs.ErrNotExist
	}

	blockData, err := pi.storage.GetBlock(pi.current)
	if errors.Is(err, sql.ErrNoRows) {
		pi.eoc = true
	}
	pi.current++

	return blockData, err
}

// Done returns the end of chain value.
func (pi *postgresIterator) Done() bool {
	return pi.eoc
}
