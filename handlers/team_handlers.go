package handlers

import (
	"net/http"
	"strings"

	"github.com/nikhilsahni7/FormX/models"
	"gorm.io/gorm"
)

// isTeamMember reports whether userID owns or belongs to teamID.
func (s *Server) isTeamMember(r *http.Request, teamID, userID uint) bool {
	var n int64
	s.DB.WithContext(r.Context()).Model(&models.Team{}).
		Where("id = ? AND (owner_id = ? OR id IN (?))", teamID, userID,
			s.DB.Table("user_teams").Select("team_id").Where("user_id = ?", userID)).
		Count(&n)
	return n > 0
}

func (s *Server) CreateTeam(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(w, r, &input); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(input.Name) == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	userID := currentUser(r)
	team := models.Team{Name: strings.TrimSpace(input.Name), OwnerID: userID}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var owner models.User
		if err := tx.First(&owner, userID).Error; err != nil {
			return err
		}
		if err := tx.Create(&team).Error; err != nil {
			return err
		}
		return tx.Model(&team).Association("Users").Append(&owner)
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, team)
}

func (s *Server) ListTeams(w http.ResponseWriter, r *http.Request) {
	userID := currentUser(r)
	var teams []models.Team

	if err := s.DB.Where("owner_id = ?", userID).Or("id IN (?)", s.DB.Table("user_teams").Select("team_id").Where("user_id = ?", userID)).Find(&teams).Error; err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, teams)
}

func (s *Server) loadTeam(w http.ResponseWriter, r *http.Request) (models.Team, bool) {
	var team models.Team
	teamID, err := pathID(r, "teamId")
	if err != nil {
		http.Error(w, "Invalid team ID", http.StatusBadRequest)
		return team, false
	}
	if !s.isTeamMember(r, teamID, currentUser(r)) {
		http.Error(w, "Team not found", http.StatusNotFound)
		return team, false
	}
	if err := s.DB.Preload("Users").First(&team, teamID).Error; err != nil {
		http.Error(w, "Team not found", http.StatusNotFound)
		return team, false
	}
	return team, true
}

func (s *Server) GetTeam(w http.ResponseWriter, r *http.Request) {
	team, ok := s.loadTeam(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, team)
}

func (s *Server) UpdateTeam(w http.ResponseWriter, r *http.Request) {
	team, ok := s.loadTeam(w, r)
	if !ok {
		return
	}
	if team.OwnerID != currentUser(r) {
		http.Error(w, "Only the team owner can rename the team", http.StatusForbidden)
		return
	}

	var input struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(w, r, &input); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.DB.Model(&team).Update("name", input.Name).Error; err != nil {
		s.fail(w, r, err)
		return
	}
	team.Name = input.Name
	writeJSON(w, http.StatusOK, team)
}

func (s *Server) AddTeamMember(w http.ResponseWriter, r *http.Request) {
	team, ok := s.loadTeam(w, r)
	if !ok {
		return
	}

	var input struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &input); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var user models.User
	if err := s.DB.Where("email = ?", strings.ToLower(strings.TrimSpace(input.Email))).First(&user).Error; err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	if err := s.DB.Model(&team).Association("Users").Append(&user); err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "User added to team successfully"})
}

func (s *Server) RemoveTeamMember(w http.ResponseWriter, r *http.Request) {
	team, ok := s.loadTeam(w, r)
	if !ok {
		return
	}

	userID, err := pathID(r, "userId")
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}
	if userID == team.OwnerID {
		http.Error(w, "The team owner cannot be removed", http.StatusBadRequest)
		return
	}

	var user models.User
	if err := s.DB.First(&user, userID).Error; err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	if err := s.DB.Model(&team).Association("Users").Delete(&user); err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "User removed from team successfully"})
}
