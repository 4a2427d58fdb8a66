package store

import (
	"slices"
	"strings"
)

// EmergencyDraft is a working copy of the emergency info. Edits stay local to
// the draft until Commit replaces the stored info in one update.
type EmergencyDraft struct {
	store *Store
	info  EmergencyInfo
}

func (s *Store) EditEmergency() *EmergencyDraft {
	return &EmergencyDraft{
		store: s,
		info:  s.Get().EmergencyInfo,
	}
}

func (d *EmergencyDraft) Info() EmergencyInfo {
	return d.info.clone()
}

func (d *EmergencyDraft) SetDoctor(name, phone string) {
	d.info.PrimaryDoctor = Doctor{Name: name, Phone: phone}
}

func (d *EmergencyDraft) SetAllergies(v string) {
	d.info.Allergies = v
}

func (d *EmergencyDraft) SetConditions(v string) {
	d.info.Conditions = v
}

func (d *EmergencyDraft) AddContact(c Contact) (Contact, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Phone = strings.TrimSpace(c.Phone)
	if c.Name == "" || c.Phone == "" {
		return Contact{}, invalid("contact")
	}
	c.ID = NewID()
	d.info.Contacts = append(d.info.Contacts, c)
	return c, nil
}

func (d *EmergencyDraft) RemoveContact(id string) bool {
	n := len(d.info.Contacts)
	d.info.Contacts = slices.DeleteFunc(d.info.Contacts, func(c Contact) bool { return c.ID == id })
	return len(d.info.Contacts) != n
}

// Replace swaps the whole working copy, keeping existing contact IDs and
// assigning new ones where missing.
func (d *EmergencyDraft) Replace(info EmergencyInfo) {
	info = info.clone()
	for i := range info.Contacts {
		if info.Contacts[i].ID == "" {
			info.Contacts[i].ID = NewID()
		}
	}
	d.info = info
}

func (d *EmergencyDraft) Commit() error {
	info := d.info.clone()
	return d.store.Update(func(data Data) Data {
		data.EmergencyInfo = info
		return data
	})
}
