package nexus

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"
)

// RetryPolicy bounds the ledger re-query loop used by verification. The
// ledger may index appends asynchronously, so an empty result is retried
// after Delay, at most Attempts times. The loop never retries indefinitely.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// DefaultRetryPolicy waits out typical ledger indexing latency: three
// attempts, 700ms apart.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Delay: 700 * time.Millisecond}

// Service is the hybrid storage orchestrator. It is the only component that
// talks to more than one backend: the relational store owns the mutable
// record, the object store owns binary bytes, and the ledger owns the
// append-only hash history. Reads are served from the relational store alone.
//
// Operations are independent; concurrent calls for different owners or ids
// need no coordination. A delete racing a verify on the same id may observe
// not-found or a transient mismatch — eventual-consistency behavior, not a
// defect.
type Service struct {
	store     ContactStore
	objects   ObjectStore
	ledger    Ledger
	sessions  SessionStore
	encryptor Encryptor
	logger    Logger
	clock     Clock
	idgen     IDGenerator
	retry     RetryPolicy
}

// NewService creates a Service with the provided dependencies.
// sessions and encryptor may be nil; the corresponding operations then
// report themselves unavailable.
func NewService(store ContactStore, objects ObjectStore, ledger Ledger, sessions SessionStore, encryptor Encryptor, logger Logger, clock Clock, idgen IDGenerator, retry RetryPolicy) *Service {
	if retry.Attempts <= 0 {
		retry = DefaultRetryPolicy
	}
	return &Service{
		store:     store,
		objects:   objects,
		ledger:    ledger,
		sessions:  sessions,
		encryptor: encryptor,
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
		retry:     retry,
	}
}

// AddContact inserts a contact, optionally uploads and attaches a photo, and
// anchors the canonical record digest in the ledger.
//
// There is no cross-store transaction. Once the relational insert succeeds
// the contact exists, so later failures return the contact alongside the
// error: an upload failure leaves the photo fields unset (never a synthetic
// locator), and a ledger failure leaves the record stored but unanchored
// (errors.Is(err, ErrUnanchored)).
func (s *Service) AddContact(ctx context.Context, owner string, fields ContactFields, photo []byte) (*Contact, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, wrapErr(ErrValidation, "owner is required", nil)
	}
	if err := fields.Validate(); err != nil {
		return nil, err
	}

	c := &Contact{
		ID:        s.idgen.New(),
		Owner:     owner,
		Name:      strings.TrimSpace(fields.Name),
		Position:  fields.Position,
		Company:   fields.Company,
		Email:     fields.Email,
		Phone:     fields.Phone,
		Telegram:  fields.Telegram,
		LinkedIn:  fields.LinkedIn,
		GitHub:    fields.GitHub,
		Location:  fields.Location,
		Goal:      fields.Goal,
		Notes:     fields.Notes,
		Tags:      fields.NormalizedTags(),
		Priority:  ParsePriority(fields.Priority),
		Source:    fields.Source,
		CreatedAt: s.clock.Now().UTC(),
	}

	if err := s.store.InsertContact(ctx, c); err != nil {
		return nil, fmt.Errorf("inserting contact: %w", err)
	}

	if len(photo) > 0 {
		if err := s.uploadAndAttach(ctx, c, photo); err != nil {
			return c, err
		}
	}

	if err := s.anchorContact(ctx, c); err != nil {
		s.logger.Warn("contact stored but not anchored", "contact_id", c.ID, "error", err)
		return c, wrapErr(ErrUnanchored, "contact stored, anchoring failed", err)
	}

	s.logger.Info("contact added", "contact_id", c.ID, "owner", owner)
	return c, nil
}

// AddPhotoToContact runs the upload+attach+anchor sequence on an existing
// contact. The contact record is re-anchored afterwards so the most recent
// ledger entry matches the updated relational row.
func (s *Service) AddPhotoToContact(ctx context.Context, owner, id string, photo []byte) (*Contact, error) {
	c, err := s.store.GetContact(ctx, owner, id)
	if err != nil {
		return nil, fmt.Errorf("loading contact: %w", err)
	}
	if c == nil {
		return nil, wrapErr(ErrNotFound, "contact not found", nil)
	}

	if err := s.uploadAndAttach(ctx, c, photo); err != nil {
		return nil, err
	}

	if err := s.anchorContact(ctx, c); err != nil {
		s.logger.Warn("photo attached but contact not re-anchored", "contact_id", c.ID, "error", err)
		return c, wrapErr(ErrUnanchored, "photo attached, anchoring failed", err)
	}

	s.logger.Info("photo attached", "contact_id", c.ID, "owner", owner)
	return c, nil
}

// uploadAndAttach uploads photo bytes and wires them to the contact.
//
// Strategy: object store first (content-addressed, so retries are harmless),
// then the relational attach, then the ledger anchor. A failed upload aborts
// before the contact references anything, so no dangling locator can exist.
func (s *Service) uploadAndAttach(ctx context.Context, c *Contact, photo []byte) error {
	if len(photo) == 0 {
		return wrapErr(ErrUploadFailed, "empty photo payload", nil)
	}

	payload := photo
	if s.encryptor != nil && s.encryptor.IsConfigured() {
		var buf bytes.Buffer
		if err := s.encryptor.Encrypt(bytes.NewReader(photo), &buf); err != nil {
			return wrapErr(ErrUploadFailed, "encrypting photo", err)
		}
		payload = buf.Bytes()
	}

	res, err := s.objects.Upload(ctx, payload, c.ID+".jpg")
	if err != nil {
		return fmt.Errorf("uploading photo: %w", err)
	}

	ref := PhotoRef{
		Locator:     res.Locator,
		ContentHash: res.ContentHash,
		CapturedAt:  s.clock.Now().UTC(),
	}
	ok, err := s.store.AttachPhoto(ctx, c.Owner, c.ID, ref)
	if err != nil {
		return fmt.Errorf("attaching photo: %w", err)
	}
	if !ok {
		return wrapErr(ErrNotFound, "contact not found", nil)
	}
	c.Photo = &ref

	rec := &HashRecord{
		ID:         s.idgen.New(),
		Kind:       KindImage,
		OriginalID: c.ID,
		Owner:      c.Owner,
		Digest:     ImageDigest(res.ContentHash),
		ObjectHash: res.ContentHash,
		CreatedAt:  s.clock.Now().UTC(),
		Verified:   true,
	}
	if err := s.ledger.Append(ctx, rec); err != nil {
		return wrapErr(ErrUnanchored, "photo stored, image anchoring failed", err)
	}
	return nil
}

// anchorContact appends the canonical contact digest to the ledger.
func (s *Service) anchorContact(ctx context.Context, c *Contact) error {
	rec := &HashRecord{
		ID:         s.idgen.New(),
		Kind:       KindContact,
		OriginalID: c.ID,
		Owner:      c.Owner,
		Digest:     ContactDigest(c),
		CreatedAt:  s.clock.Now().UTC(),
		Verified:   true,
	}
	return s.ledger.Append(ctx, rec)
}

// GetUserContacts returns the owner's contacts, newest first.
func (s *Service) GetUserContacts(ctx context.Context, owner string) ([]*Contact, error) {
	return s.store.ListContacts(ctx, owner)
}

// SearchContacts returns the owner's contacts matching the query as a
// case-insensitive substring across text fields and tags. An empty or
// whitespace-only query returns the full list.
func (s *Service) SearchContacts(ctx context.Context, owner, query string) ([]*Contact, error) {
	if strings.TrimSpace(query) == "" {
		return s.store.ListContacts(ctx, owner)
	}
	return s.store.SearchContacts(ctx, owner, query)
}

// GetContact returns one contact or ErrNotFound.
func (s *Service) GetContact(ctx context.Context, owner, id string) (*Contact, error) {
	c, err := s.store.GetContact(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, wrapErr(ErrNotFound, "contact not found", nil)
	}
	return c, nil
}

// DeleteContact removes the relational record and appends a tombstone to the
// ledger. The ledger cannot delete, so the tombstone is the permanent marker
// that the id is no longer a valid verification subject. Earlier anchored
// entries remain untouched.
func (s *Service) DeleteContact(ctx context.Context, owner, id string) error {
	ok, err := s.store.DeleteContact(ctx, owner, id)
	if err != nil {
		return fmt.Errorf("deleting contact: %w", err)
	}
	if !ok {
		return wrapErr(ErrNotFound, "contact not found", nil)
	}

	rec := &HashRecord{
		ID:         s.idgen.New(),
		Kind:       KindTombstone,
		OriginalID: id,
		Owner:      owner,
		CreatedAt:  s.clock.Now().UTC(),
		Verified:   true,
	}
	if err := s.ledger.Append(ctx, rec); err != nil {
		s.logger.Warn("contact deleted but tombstone not anchored", "contact_id", id, "error", err)
		return wrapErr(ErrUnanchored, "contact deleted, tombstone anchoring failed", err)
	}

	s.logger.Info("contact deleted", "contact_id", id, "owner", owner)
	return nil
}

// GetStats summarizes the owner's contact book.
func (s *Service) GetStats(ctx context.Context, owner string) (*Stats, error) {
	return s.store.Stats(ctx, owner, s.clock.Now())
}

// AddBaseBuilder stores a builder application and anchors its digest.
// At most one application exists per owner; a second attempt fails with
// ErrAlreadyExists and leaves the first untouched.
func (s *Service) AddBaseBuilder(ctx context.Context, owner string, fields BuilderFields) (*BuilderApplication, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, wrapErr(ErrValidation, "owner is required", nil)
	}
	if err := fields.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.store.FindBuilderApplicationByOwner(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("checking for existing application: %w", err)
	}
	if existing != nil {
		return nil, wrapErr(ErrAlreadyExists, "builder application already exists for owner", nil)
	}

	a := &BuilderApplication{
		ID:         s.idgen.New(),
		Owner:      owner,
		Name:       strings.TrimSpace(fields.Name),
		Email:      fields.Email,
		Telegram:   fields.Telegram,
		Project:    fields.Project,
		Role:       fields.Role,
		Experience: fields.Experience,
		Motivation: fields.Motivation,
		CreatedAt:  s.clock.Now().UTC(),
	}

	if err := s.store.InsertBuilderApplication(ctx, a); err != nil {
		return nil, fmt.Errorf("inserting application: %w", err)
	}

	rec := &HashRecord{
		ID:         s.idgen.New(),
		Kind:       KindApplication,
		OriginalID: a.ID,
		Owner:      owner,
		Digest:     ApplicationDigest(a),
		CreatedAt:  s.clock.Now().UTC(),
		Verified:   true,
	}
	if err := s.ledger.Append(ctx, rec); err != nil {
		s.logger.Warn("application stored but not anchored", "application_id", a.ID, "error", err)
		return a, wrapErr(ErrUnanchored, "application stored, anchoring failed", err)
	}

	s.logger.Info("builder application added", "application_id", a.ID, "owner", owner)
	return a, nil
}

// GetBaseBuilderByOwner returns the owner's application or ErrNotFound.
func (s *Service) GetBaseBuilderByOwner(ctx context.Context, owner string) (*BuilderApplication, error) {
	a, err := s.store.FindBuilderApplicationByOwner(ctx, owner)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, wrapErr(ErrNotFound, "builder application not found", nil)
	}
	return a, nil
}

// RequestPhotoUpload records that the owner's next photo belongs to the
// given contact. The pending action expires after ttl; expiry is checked
// when the photo arrives.
func (s *Service) RequestPhotoUpload(ctx context.Context, owner, contactID string, ttl time.Duration) error {
	if s.sessions == nil {
		return wrapErr(ErrValidation, "session store not configured", nil)
	}
	c, err := s.store.GetContact(ctx, owner, contactID)
	if err != nil {
		return err
	}
	if c == nil {
		return wrapErr(ErrNotFound, "contact not found", nil)
	}
	now := s.clock.Now().UTC()
	return s.sessions.Put(ctx, owner, PendingAction{
		Action:    "attach_photo",
		ContactID: contactID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	})
}

// CompletePendingPhoto consumes the owner's pending action and attaches the
// photo to the recorded contact. Absent or expired actions are ErrNotFound.
func (s *Service) CompletePendingPhoto(ctx context.Context, owner string, photo []byte) (*Contact, error) {
	if s.sessions == nil {
		return nil, wrapErr(ErrValidation, "session store not configured", nil)
	}
	pending, err := s.sessions.Get(ctx, owner)
	if err != nil {
		return nil, err
	}
	if pending == nil || pending.Action != "attach_photo" {
		return nil, wrapErr(ErrNotFound, "no pending photo request", nil)
	}
	if err := s.sessions.Delete(ctx, owner); err != nil {
		s.logger.Warn("deleting pending action", "owner", owner, "error", err)
	}
	return s.AddPhotoToContact(ctx, owner, pending.ContactID, photo)
}
