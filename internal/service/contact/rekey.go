package contact

import (
	"context"
	"fmt"

	"github.com/ignite/mailroom/internal/pkg/logger"
	"github.com/ignite/mailroom/internal/security"
)

// RekeyResult counts the rows rewritten by Rekey.
type RekeyResult struct {
	UpdatedContacts   int `json:"updatedContacts"`
	UpdatedRecipients int `json:"updatedRecipients"`
}

// Rekey brings stored contact data up to the current protection scheme.
// A contact is rewritten when its email is plaintext, its lookup hash is
// stale, or any optional field is plaintext. Recipient rows are rewritten
// when their email is plaintext. Rows already in the current form are not
// touched, so repeated runs are cheap and a second run reports zero.
func (s *Service) Rekey(ctx context.Context) (*RekeyResult, error) {
	contacts, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}

	res := &RekeyResult{}
	for i := range contacts {
		c := &contacts[i]

		plain, err := s.codec.Decrypt(c.Email)
		if err != nil {
			return res, fmt.Errorf("decrypt contact %s: %w", c.ID, err)
		}
		email := security.NormalizeEmail(plain)
		hash, err := s.codec.LookupHash(email)
		if err != nil {
			return res, err
		}

		if security.IsEncrypted(c.Email) && c.EmailHash == hash &&
			sealed(c.Name) && sealed(c.Company) && sealed(c.Tags) {
			continue
		}

		if c.Email, err = s.codec.Encrypt(email); err != nil {
			return res, err
		}
		c.EmailHash = hash
		for _, field := range []**string{&c.Name, &c.Company, &c.Tags} {
			v, err := s.codec.DecryptNullable(*field)
			if err != nil {
				return res, fmt.Errorf("decrypt contact %s: %w", c.ID, err)
			}
			if *field, err = s.codec.EncryptNullable(v); err != nil {
				return res, err
			}
		}
		c.UpdatedAt = s.now()
		if err := s.repo.Update(ctx, c); err != nil {
			return res, fmt.Errorf("rewrite contact %s: %w", c.ID, err)
		}
		res.UpdatedContacts++
	}

	recipients, err := s.repo.ListRecipientEmails(ctx)
	if err != nil {
		return res, fmt.Errorf("list recipients: %w", err)
	}
	for _, r := range recipients {
		if security.IsEncrypted(r.Email) {
			continue
		}
		enc, err := s.codec.Encrypt(r.Email)
		if err != nil {
			return res, err
		}
		if err := s.repo.UpdateRecipientEmail(ctx, r.ID, enc); err != nil {
			return res, fmt.Errorf("rewrite recipient %s: %w", r.ID, err)
		}
		res.UpdatedRecipients++
	}

	logger.Info("contact rekey finished",
		"contacts", res.UpdatedContacts, "recipients", res.UpdatedRecipients)
	return res, nil
}

// sealed reports whether an optional field is absent or already enveloped.
func sealed(v *string) bool {
	return v == nil || *v == "" || security.IsEncrypted(*v)
}
