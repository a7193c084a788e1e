package launcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"gitlab.com/atechtools/token-launcher/common"
	"gitlab.com/atechtools/token-launcher/feepolicy"
	"gitlab.com/atechtools/token-launcher/metadata"
	"gitlab.com/atechtools/token-launcher/registry"
	"gitlab.com/atechtools/token-launcher/solana"
)

// Chain is the part of the cluster a launch talks to. *solana.Minter
// implements it.
type Chain interface {
	solana.Confirmer
	solana.RawBroadcaster
	MintRent(ctx context.Context, name, symbol, uri string, fields []solana.MetadataField) (uint64, error)
	PrepareTransaction(ctx context.Context, plan solana.Plan, mintKey solanago.PrivateKey) (*solanago.Transaction, solana.Blockhash, error)
	BlockHeight(ctx context.Context) (uint64, error)
	TxStatus(ctx context.Context, sig solanago.Signature) (solana.Status, error)

	FeeState(ctx context.Context, mint solanago.PublicKey) (solana.FeeState, error)
	AccountExists(ctx context.Context, address solanago.PublicKey) (bool, error)
	PrepareUnsigned(ctx context.Context, plan solana.Plan) (*solanago.Transaction, solana.Blockhash, error)
}

// Storage is the launch ledger. *launchdb.LaunchDB and *launchdb.Memory
// implement it.
type Storage interface {
	InsertLaunch(ctx context.Context, record common.LaunchRecord) (common.LaunchRecord, error)
	MarkSubmitted(ctx context.Context, mint common.SolanaAddress, signature string) error
	SetStatus(ctx context.Context, mint common.SolanaAddress, status common.LaunchStatus, errorKind string) error
	MarkRegistered(ctx context.Context, mint common.SolanaAddress) (bool, error)
	Launch(ctx context.Context, mint common.SolanaAddress) (common.LaunchRecord, error)
	History(ctx context.Context, creator common.SolanaAddress, limit int) ([]common.LaunchRecord, error)
	Pending(ctx context.Context) ([]common.LaunchRecord, error)
}

type Settings struct {
	Schedule  feepolicy.Schedule
	Submitter solana.SubmitterConfig

	ReconcileInterval time.Duration
	RegistryTimeout   time.Duration
	HistoryLimit      int
}

const (
	defaultReconcileInterval = time.Minute
	defaultRegistryTimeout   = 10 * time.Second
	defaultHistoryLimit      = 50

	ledgerTimeout = 30 * time.Second
)

// prepared is a launch built by PrepareLaunch and waiting for the wallet.
type prepared struct {
	record     common.LaunchRecord
	tx         *solanago.Transaction
	message    []byte
	plan       solana.Plan
	policy     feepolicy.FeePolicy
	fee        uint64
	noMetadata bool
}

type Server struct {
	settings  Settings
	chain     Chain
	storage   Storage
	uploader  metadata.Uploader
	registry  registry.Service
	submitter *solana.Submitter

	now        func() time.Time
	newMintKey func() (solanago.PrivateKey, error)

	mu      sync.Mutex
	pending map[common.SolanaAddress]*prepared
	claims  map[common.SolanaAddress]*pendingClaim

	cancel context.CancelFunc
	stopWg sync.WaitGroup // Close waits for this WaitGroup.
}

// New creates the server and starts the reconcile loop. uploader and
// registry may be nil: launches then go without off-chain metadata and are
// not listed.
func New(settings Settings, chain Chain, storage Storage, uploader metadata.Uploader, reg registry.Service) (*Server, error) {
	if err := settings.Schedule.Validate(); err != nil {
		return nil, err
	}
	if settings.ReconcileInterval == 0 {
		settings.ReconcileInterval = defaultReconcileInterval
	}
	if settings.RegistryTimeout == 0 {
		settings.RegistryTimeout = defaultRegistryTimeout
	}
	if settings.HistoryLimit == 0 {
		settings.HistoryLimit = defaultHistoryLimit
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		settings:   settings,
		chain:      chain,
		storage:    storage,
		uploader:   uploader,
		registry:   reg,
		submitter:  solana.NewSubmitter(chain, settings.Submitter),
		now:        time.Now,
		newMintKey: solanago.NewRandomPrivateKey,
		pending:    make(map[common.SolanaAddress]*prepared),
		claims:     make(map[common.SolanaAddress]*pendingClaim),
		cancel:     cancel,
	}
	s.runInALoop(ctx, "reconcile", settings.ReconcileInterval, s.reconcilePending)
	return s, nil
}

func (s *Server) Close() error {
	s.cancel()
	s.stopWg.Wait()
	return nil
}

// Launch runs the whole flow for a wallet held by the caller.
func (s *Server) Launch(ctx context.Context, spec common.TokenSpec, c solana.Capability) (*LaunchResult, error) {
	if !c.Supported() {
		return nil, solana.ErrUnsupportedWallet
	}
	p, err := s.prepare(ctx, spec, c.Owner())
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, p, c)
}

func (s *Server) prepare(ctx context.Context, spec common.TokenSpec, owner solanago.PublicKey) (*prepared, error) {
	if owner.IsZero() {
		return nil, &common.ValidationError{Field: "owner", Msg: "wallet address is required"}
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	baseUnits, err := common.ToBaseUnits(spec.InitialSupply, spec.Decimals)
	if err != nil {
		return nil, err
	}
	schedule := s.settings.Schedule
	policy, err := schedule.Resolve(spec.Tier, spec.Royalty(), owner)
	if err != nil {
		return nil, err
	}
	fee, err := schedule.CreationFeeLamports(spec.Tier)
	if err != nil {
		return nil, err
	}

	metadataURI, noMetadata := s.pinMetadata(ctx, spec, owner, policy.TransferFeeBasisPoints)

	mintKey, err := s.newMintKey()
	if err != nil {
		return nil, fmt.Errorf("cannot generate mint key: %w", err)
	}
	rent, err := s.chain.MintRent(ctx, spec.Name, spec.Symbol, metadataURI, solana.PlanFields(spec.Tier))
	if err != nil {
		return nil, err
	}
	plan, err := solana.BuildPlan(solana.PlanParams{
		Spec:                spec,
		Policy:              policy,
		MetadataURI:         metadataURI,
		Payer:               owner,
		Mint:                mintKey.PublicKey(),
		BaseUnits:           baseUnits,
		MintRentLamports:    rent,
		TreasuryFeeLamports: fee,
		Treasury:            schedule.Treasury,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot build plan: %w", err)
	}
	tx, blockhash, err := s.chain.PrepareTransaction(ctx, plan, mintKey)
	if err != nil {
		return nil, err
	}
	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("cannot marshal message: %w", err)
	}

	record, err := s.storage.InsertLaunch(ctx, common.LaunchRecord{
		Mint:                 common.SolanaAddress(plan.Mint),
		Creator:              common.SolanaAddress(owner),
		Tier:                 spec.Tier,
		Name:                 spec.Name,
		Symbol:               spec.Symbol,
		MetadataURI:          metadataURI,
		Status:               common.Prepared,
		LastValidBlockHeight: blockhash.LastValidBlockHeight,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot journal launch: %w", err)
	}
	log.Printf("Prepared launch %s of %s (%s) for %s, %d steps", record.Mint, spec.Symbol, spec.Tier, owner, len(plan.Steps))

	return &prepared{
		record:     record,
		tx:         tx,
		message:    message,
		plan:       plan,
		policy:     policy,
		fee:        fee,
		noMetadata: noMetadata,
	}, nil
}

// pinMetadata never fails the launch. Without an uploader, or when the upload
// fails, the token is created with an empty URI.
func (s *Server) pinMetadata(ctx context.Context, spec common.TokenSpec, owner solanago.PublicKey, royaltyBps uint16) (string, bool) {
	if s.uploader == nil {
		return "", true
	}
	res, err := metadata.Pin(ctx, s.uploader, spec, owner, royaltyBps)
	if err != nil {
		log.Printf("Metadata of %s not pinned (%s): %v", spec.Symbol, Classify(err), err)
		return "", true
	}
	return res.URI, false
}

func (s *Server) submit(ctx context.Context, p *prepared, c solana.Capability) (*LaunchResult, error) {
	mint := p.record.Mint
	result := &LaunchResult{
		Mint:                   mint,
		AssociatedAccount:      common.SolanaAddress(p.plan.AssociatedAccount),
		Status:                 common.Prepared,
		MetadataURI:            p.record.MetadataURI,
		NoMetadata:             p.noMetadata,
		TransferFeeBasisPoints: p.policy.TransferFeeBasisPoints,
		CreationFeeLamports:    p.fee,
	}

	sig, err := s.submitter.Submit(ctx, p.tx, c)
	if !sig.IsZero() {
		result.Signature = sig.String()
		result.Status = common.Submitted
		if markErr := s.storage.MarkSubmitted(ctx, mint, result.Signature); markErr != nil {
			log.Printf("Failed to mark launch %s submitted: %v", mint, markErr)
		}
	}
	if err != nil {
		kind := Classify(err)
		result.Status = common.Failed
		if kind == KindConfirmationTimeout {
			result.Status = common.TimedOut
		}
		s.setStatus(ctx, mint, result.Status, kind)
		log.Printf("Launch %s failed (%s): %v", mint, kind, err)
		return result, err
	}

	result.Status = common.Confirmed
	s.setStatus(ctx, mint, common.Confirmed, KindNone)
	log.Printf("Launch %s confirmed, signature %s", mint, result.Signature)

	p.record.Status = common.Confirmed
	s.register(p.record)
	return result, nil
}

func (s *Server) setStatus(ctx context.Context, mint common.SolanaAddress, status common.LaunchStatus, kind ErrorKind) {
	// The outcome is recorded even if the request context is gone.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ledgerTimeout)
	defer cancel()
	if err := s.storage.SetStatus(ctx, mint, status, string(kind)); err != nil {
		log.Printf("Failed to set status of launch %s to %s: %v", mint, status, err)
	}
}

// register reports a confirmed launch to the registry once, in the
// background. Failures are logged and dropped.
func (s *Server) register(record common.LaunchRecord) {
	if s.registry == nil {
		return
	}
	s.stopWg.Add(1)
	go func() {
		defer s.stopWg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.settings.RegistryTimeout)
		defer cancel()
		if err := s.registerOnce(ctx, record); err != nil {
			log.Printf("Registry write skipped (%s): %v", Classify(err), err)
		}
	}()
}

func (s *Server) registerOnce(ctx context.Context, record common.LaunchRecord) error {
	first, err := s.storage.MarkRegistered(ctx, record.Mint)
	if err != nil {
		return fmt.Errorf("cannot mark launch %s registered: %w", record.Mint, err)
	}
	if !first {
		return nil
	}
	res, err := s.registry.CreateToken(ctx, &registry.CreateTokenRequest{
		MintAddress:   record.Mint,
		CreatorWallet: record.Creator,
		Plan:          record.Tier,
		Name:          record.Name,
		Symbol:        record.Symbol,
	})
	if err == nil && !res.Success {
		err = errors.New(res.Message)
	}
	if err != nil {
		return &RegistryWriteError{Mint: record.Mint, Err: err}
	}
	log.Printf("Launch %s listed in the registry (id %d)", record.Mint, res.ID)
	return nil
}

func (s *Server) QuoteFees(ctx context.Context, req *QuoteFeesRequest) (*QuoteFeesResponse, error) {
	schedule := s.settings.Schedule
	policy, err := schedule.Resolve(req.Plan, req.RoyaltyBasisPoints, solanago.PublicKey(req.Creator))
	if err != nil {
		return nil, apiError(err)
	}
	fee, err := schedule.CreationFeeLamports(req.Plan)
	if err != nil {
		return nil, apiError(err)
	}
	rent, err := s.chain.MintRent(ctx, req.Name, req.Symbol, req.MetadataURI, solana.PlanFields(req.Plan))
	if err != nil {
		return nil, apiError(err)
	}
	return &QuoteFeesResponse{
		Plan:                   req.Plan,
		TransferFeeBasisPoints: policy.TransferFeeBasisPoints,
		MaxFeeAmount:           policy.MaxFeeAmount,
		FeeAuthority:           common.SolanaAddress(policy.WithdrawAuthority),
		CreationFeeLamports:    fee,
		CreationFee:            feepolicy.FormatSOL(fee),
		RentLamports:           rent,
		TotalLamports:          fee + rent,
	}, nil
}

func (s *Server) PrepareLaunch(ctx context.Context, req *PrepareLaunchRequest) (*PrepareLaunchResponse, error) {
	p, err := s.prepare(ctx, req.Spec, solanago.PublicKey(req.Owner))
	if err != nil {
		return nil, apiError(err)
	}
	encoded, err := p.tx.ToBase64()
	if err != nil {
		return nil, apiError(fmt.Errorf("cannot encode transaction: %w", err))
	}
	s.mu.Lock()
	s.pending[p.record.Mint] = p
	s.mu.Unlock()

	steps := make([]string, 0, len(p.plan.Steps))
	for _, kind := range p.plan.Kinds() {
		steps = append(steps, kind.String())
	}
	return &PrepareLaunchResponse{
		Mint:                 p.record.Mint,
		AssociatedAccount:    common.SolanaAddress(p.plan.AssociatedAccount),
		Transaction:          encoded,
		LastValidBlockHeight: p.record.LastValidBlockHeight,
		MetadataURI:          p.record.MetadataURI,
		NoMetadata:           p.noMetadata,
		CreationFeeLamports:  p.fee,
		Steps:                steps,
	}, nil
}

// SubmitLaunch broadcasts a transaction signed by a browser wallet. Only the
// exact message returned by PrepareLaunch is accepted.
func (s *Server) SubmitLaunch(ctx context.Context, req *SubmitLaunchRequest) (*SubmitLaunchResponse, error) {
	s.mu.Lock()
	p, has := s.pending[req.Mint]
	s.mu.Unlock()
	if !has {
		if _, err := s.storage.Launch(ctx, req.Mint); err == nil {
			return nil, apiError(fmt.Errorf("%w: %s", ErrAlreadyStarted, req.Mint))
		}
		return nil, apiError(fmt.Errorf("%w: %s", ErrUnknownLaunch, req.Mint))
	}

	tx, err := solanago.TransactionFromBase64(req.Transaction)
	if err != nil {
		return nil, apiError(&common.ValidationError{Field: "transaction", Msg: err.Error()})
	}
	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return nil, apiError(fmt.Errorf("cannot marshal message: %w", err))
	}
	if !bytes.Equal(message, p.message) {
		return nil, apiError(fmt.Errorf("%w: %s", ErrTampered, req.Mint))
	}

	height, err := s.chain.BlockHeight(ctx)
	if err != nil {
		return nil, apiError(err)
	}
	if height > p.record.LastValidBlockHeight {
		s.expire(ctx, req.Mint)
		return nil, apiError(fmt.Errorf("%w: %s", ErrLaunchExpired, req.Mint))
	}

	s.mu.Lock()
	_, has = s.pending[req.Mint]
	delete(s.pending, req.Mint)
	s.mu.Unlock()
	if !has {
		return nil, apiError(fmt.Errorf("%w: %s", ErrAlreadyStarted, req.Mint))
	}

	p.tx = tx
	wallet := solana.PresignedWallet{Owner: solanago.PublicKey(p.record.Creator)}
	result, err := s.submit(ctx, p, solana.Split(wallet, s.chain))
	if err != nil {
		return nil, broadcastError(err, result.Signature)
	}
	return &SubmitLaunchResponse{Result: *result}, nil
}

// expire forgets a prepared launch whose blockhash can no longer land.
func (s *Server) expire(ctx context.Context, mint common.SolanaAddress) {
	s.mu.Lock()
	delete(s.pending, mint)
	s.mu.Unlock()
	s.setStatus(ctx, mint, common.Failed, KindExpired)
}

func (s *Server) LaunchStatus(ctx context.Context, req *LaunchStatusRequest) (*LaunchStatusResponse, error) {
	record, err := s.storage.Launch(ctx, req.Mint)
	if errors.Is(err, common.ErrNotExists) {
		return nil, apiError(fmt.Errorf("%w: %s", ErrUnknownLaunch, req.Mint))
	} else if err != nil {
		return nil, apiError(err)
	}
	return &LaunchStatusResponse{Launch: record}, nil
}

func (s *Server) History(ctx context.Context, req *HistoryRequest) (*HistoryResponse, error) {
	limit := req.Limit
	if limit <= 0 || limit > s.settings.HistoryLimit {
		limit = s.settings.HistoryLimit
	}
	records, err := s.storage.History(ctx, req.Creator, limit)
	if err != nil {
		return nil, apiError(err)
	}
	return &HistoryResponse{Launches: records}, nil
}
