package handlers

import (
	"net/http"
	"strings"

	"github.com/nikhilsahni7/FormX/models"
	"gorm.io/gorm"
)

type folderInput struct {
	Name string `json:"name"`
}

func (s *Server) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var input folderInput
	if err := decodeJSON(w, r, &input); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	folder := models.Folder{OwnerID: currentUser(r), Name: name}
	if err := s.DB.Create(&folder).Error; err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, folder)
}

func (s *Server) ListFolders(w http.ResponseWriter, r *http.Request) {
	var folders []models.Folder
	if err := s.DB.Where("owner_id = ?", currentUser(r)).Order("name").Find(&folders).Error; err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, folders)
}

func (s *Server) loadFolder(w http.ResponseWriter, r *http.Request) (models.Folder, bool) {
	var folder models.Folder
	id, err := pathID(r, "id")
	if err != nil {
		http.Error(w, "Invalid folder ID", http.StatusBadRequest)
		return folder, false
	}
	if err := s.DB.Where("owner_id = ?", currentUser(r)).First(&folder, id).Error; err != nil {
		http.Error(w, "Folder not found", http.StatusNotFound)
		return folder, false
	}
	return folder, true
}

func (s *Server) UpdateFolder(w http.ResponseWriter, r *http.Request) {
	folder, ok := s.loadFolder(w, r)
	if !ok {
		return
	}

	var input folderInput
	if err := decodeJSON(w, r, &input); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	if err := s.DB.Model(&folder).Update("name", name).Error; err != nil {
		s.fail(w, r, err)
		return
	}
	folder.Name = name
	writeJSON(w, http.StatusOK, folder)
}

// DeleteFolder removes the folder; its forms move back to the top level.
func (s *Server) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	folder, ok := s.loadFolder(w, r)
	if !ok {
		return
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Form{}).Where("folder_id = ?", folder.ID).Update("folder_id", nil).Error; err != nil {
			return err
		}
		return tx.Delete(&folder).Error
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
