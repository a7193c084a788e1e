package launcher

import (
	"context"
	"fmt"
	"log"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"gitlab.com/atechtools/token-launcher/common"
)

func (s *Server) runInALoop(ctx context.Context, name string, interval time.Duration, callback func(ctx context.Context) error) {
	s.stopWg.Add(1)
	ticker := time.NewTicker(interval)

	go func() {
		defer func() {
			ticker.Stop()
			s.stopWg.Done()
		}()
		for {
			select {
			case <-ctx.Done():
				log.Printf("%s loop done by context", name)
				return
			case <-ticker.C:
				if err := callback(ctx); err != nil {
					log.Printf("%s callback failed: %v", name, err)
				}
			}
		}
	}()
}

// reconcilePending settles launches whose outcome was unknown when the
// request returned: late confirmations, failures and expired blockhashes.
func (s *Server) reconcilePending(ctx context.Context) error {
	height, err := s.chain.BlockHeight(ctx)
	if err != nil {
		return fmt.Errorf("failed to get block height: %w", err)
	}
	s.expirePrepared(ctx, height)

	launches, err := s.storage.Pending(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch pending launches: %w", err)
	}
	if len(launches) == 0 {
		return nil
	}
	log.Printf("[reconcile]: %d pending launches at height %d", len(launches), height)
	for _, launch := range launches {
		if err := s.reconcile(ctx, launch, height); err != nil {
			log.Printf("[reconcile]: launch %s: %v", launch.Mint, err)
		}
	}
	return nil
}

func (s *Server) reconcile(ctx context.Context, launch common.LaunchRecord, height uint64) error {
	sig, err := solanago.SignatureFromBase58(launch.Signature)
	if err != nil {
		return fmt.Errorf("bad signature %q: %w", launch.Signature, err)
	}
	status, err := s.chain.TxStatus(ctx, sig)
	if err != nil {
		return fmt.Errorf("failed to get status of %s: %w", sig, err)
	}
	switch {
	case status.Confirmed && status.Successful:
		log.Printf("[reconcile]: launch %s confirmed late", launch.Mint)
		if err := s.storage.SetStatus(ctx, launch.Mint, common.Confirmed, string(KindNone)); err != nil {
			return err
		}
		launch.Status = common.Confirmed
		s.register(launch)
	case status.Confirmed:
		log.Printf("[reconcile]: launch %s failed on chain: %v", launch.Mint, status.Err)
		return s.storage.SetStatus(ctx, launch.Mint, common.Failed, string(Classify(status.Err)))
	case height > launch.LastValidBlockHeight:
		log.Printf("[reconcile]: launch %s never landed before height %d", launch.Mint, launch.LastValidBlockHeight)
		return s.storage.SetStatus(ctx, launch.Mint, common.Failed, string(KindExpired))
	}
	return nil
}

// expirePrepared drops launches that were prepared for a browser wallet but
// not submitted while their blockhash was valid.
func (s *Server) expirePrepared(ctx context.Context, height uint64) {
	var expired []common.SolanaAddress
	s.mu.Lock()
	for mint, p := range s.pending {
		if height > p.record.LastValidBlockHeight {
			expired = append(expired, mint)
		}
	}
	s.mu.Unlock()
	s.expireClaims(height)
	for _, mint := range expired {
		log.Printf("[reconcile]: prepared launch %s expired unsigned", mint)
		s.expire(ctx, mint)
	}
}
